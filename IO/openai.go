package IO

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/leeminsik/BERT-keras/params"
	"github.com/leeminsik/BERT-keras/transformer"
	"github.com/leeminsik/BERT-keras/utils"
)

// ShardCount is the fixed number of flat .npy archives in the checkpoint.
const ShardCount = 10

// The manifest's first slot is the position table, the second the token
// table; everything after belongs to the encoder layers.
const tokenManifestIndex = 1

// LoadOpenAI reads a pretrained GPT checkpoint directory (params_shapes.json
// plus params_0.npy .. params_9.npy) and returns a model initialized with it.
// The checkpoint pins the architecture: width 768, 12 layers, 12 heads,
// 40478 BPE tokens, 512 positions. Only the mask, dropout-collapsing and
// debug knobs remain free.
//
// With debug set, weight count and shapes are verified against the model
// before assignment. Without it, a wrong entry surfaces only if its shape
// disagrees with the slot it lands in; a reordering with coinciding shapes
// loads silently wrong.
func LoadOpenAI(dir string, ignoreMask, useOneEmbeddingDropout, debug bool) (*transformer.Model, error) {
	cfg := params.OpenAI()
	cfg.IgnoreMask = ignoreMask
	cfg.UseOneEmbeddingDropout = useOneEmbeddingDropout
	cfg.Debug = debug
	return loadOpenAI(dir, cfg, debug)
}

// loadOpenAI carries the real work with the architecture unpinned so the
// archive handling stays testable at toy sizes.
func loadOpenAI(dir string, cfg params.Config, debug bool) (*transformer.Model, error) {
	shapes, err := readShapes(filepath.Join(dir, "params_shapes.json"))
	if err != nil {
		return nil, err
	}
	if len(shapes) <= tokenManifestIndex {
		return nil, fmt.Errorf("load openai: manifest holds %d shapes, too few for a model", len(shapes))
	}

	var flat []float64
	for n := 0; n < ShardCount; n++ {
		arr, err := ReadNpy(filepath.Join(dir, fmt.Sprintf("params_%d.npy", n)))
		if err != nil {
			return nil, fmt.Errorf("load openai: %w", err)
		}
		flat = append(flat, arr.Data...)
	}

	// re-split the concatenated stream at cumulative shape offsets
	weights := make([]transformer.Weight, 0, len(shapes)+2)
	offset := 0
	for i, shape := range shapes {
		w := transformer.Weight{Shape: shape}
		size := w.Size()
		if offset+size > len(flat) {
			return nil, fmt.Errorf("load openai: shards hold %d values, manifest entry %d needs %d more",
				len(flat), i, offset+size-len(flat))
		}
		w.Data = flat[offset : offset+size]
		offset += size
		weights = append(weights, w)
	}

	// extend the token table with freshly initialized special-token rows
	d := cfg.EmbeddingDim
	tok := weights[tokenManifestIndex]
	tok.Shape = append([]int(nil), tok.Shape...)
	tok.Shape[0] += params.SpecialCount
	tok.Data = append(append([]float64(nil), tok.Data...), utils.NormalArray(params.SpecialCount*d, 0.02)...)
	weights[tokenManifestIndex] = tok

	// the checkpoint predates segment embeddings and the decoder bias;
	// splice in zero-valued ones
	segment := transformer.Weight{Shape: []int{cfg.NumSegments, d}, Data: make([]float64, cfg.NumSegments*d)}
	weights = append([]transformer.Weight{segment}, weights...)
	decoderBias := transformer.Weight{Shape: []int{cfg.VocabSize}, Data: make([]float64, cfg.VocabSize)}
	weights = append(weights, decoderBias)

	model, err := transformer.New(cfg)
	if err != nil {
		return nil, err
	}

	if debug {
		ps := model.Parameters()
		if len(ps) != len(weights) {
			return nil, fmt.Errorf("load openai: %d checkpoint entries but the model enumerates %d parameters",
				len(weights), len(ps))
		}
		for i, p := range ps {
			if !p.ShapeMatches(weights[i].Shape) {
				r, c := p.Dims()
				return nil, fmt.Errorf("load openai: entry %d has shape %v, parameter %s wants (%d x %d)",
					i, weights[i].Shape, p.Name, r, c)
			}
		}
		log.Printf("openai checkpoint: %d manifest entries verified against %d parameters", len(weights), len(ps))
	}

	if err := model.SetParameters(weights); err != nil {
		return nil, fmt.Errorf("load openai: %w", err)
	}
	return model, nil
}

func readShapes(path string) ([][]int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shapes: %w", err)
	}
	var shapes [][]int
	if err := json.Unmarshal(raw, &shapes); err != nil {
		return nil, fmt.Errorf("read shapes %s: %w", path, err)
	}
	return shapes, nil
}
