package IO

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/leeminsik/BERT-keras/params"
	"github.com/leeminsik/BERT-keras/transformer"
	"gonum.org/v1/gonum/mat"
)

// Native checkpoint format: gob of the config plus every parameter keyed by
// its templated name. Loading matches by name, never by position, so layer
// construction order may change between versions without corrupting weights.

type savedParam struct {
	Name       string
	Rows, Cols int
	Data       []float64
}

type savedModel struct {
	Config params.Config
	Params []savedParam
}

// SaveModel persists the model (config + weights) to filename.
func SaveModel(m *transformer.Model, filename string) error {
	data := savedModel{Config: m.Config}
	for _, p := range m.Parameters() {
		r, c := p.Dims()
		raw := mat.DenseCopyOf(p.Value).RawMatrix()
		data.Params = append(data.Params, savedParam{
			Name: p.Name,
			Rows: r,
			Cols: c,
			Data: append([]float64(nil), raw.Data...),
		})
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	return os.WriteFile(filename, buf.Bytes(), 0644)
}

// LoadModel rebuilds a model from the stored config and assigns every weight
// by name. Unknown or missing names fail the load.
func LoadModel(filename string) (*transformer.Model, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	var data savedModel
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&data); err != nil {
		return nil, fmt.Errorf("load model %s: %w", filename, err)
	}

	model, err := transformer.New(data.Config)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", filename, err)
	}
	weights := make(map[string]transformer.Weight, len(data.Params))
	for _, sp := range data.Params {
		weights[sp.Name] = transformer.Weight{Shape: []int{sp.Rows, sp.Cols}, Data: sp.Data}
	}
	if err := model.SetParametersByName(weights); err != nil {
		return nil, fmt.Errorf("load model %s: %w", filename, err)
	}
	return model, nil
}
