// Package transformer assembles the encoder: embeddings, attention blocks,
// feed-forward blocks, layer normalization, and the weight-tied decoder head.
package transformer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Parameter is a named weight owned by exactly one layer. Layers that share a
// weight hold the same *Parameter, so a write through one is visible through
// the other; only the owner enumerates it.
type Parameter struct {
	Name      string
	Value     *mat.Dense
	Trainable bool
}

func newParameter(name string, r, c int, data []float64) *Parameter {
	return &Parameter{Name: name, Value: mat.NewDense(r, c, data), Trainable: true}
}

func (p *Parameter) Dims() (int, int) { return p.Value.Dims() }

// Size is the element count.
func (p *Parameter) Size() int {
	r, c := p.Value.Dims()
	return r * c
}

// ShapeMatches reports whether a checkpoint shape is assignable here.
// Size-1 axes are ignored on both sides: a (1, in, out) kernel manifest binds
// to an (in x out) matrix and an (n,) manifest binds to an (n x 1) column.
func (p *Parameter) ShapeMatches(shape []int) bool {
	r, c := p.Value.Dims()
	a := squeeze(shape)
	b := squeeze([]int{r, c})
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SetData overwrites the value with row-major flat data. The declared shape
// must match the parameter's dims; this is the assignment-time shape error a
// loader runs into even without the debug pre-check. Data with the right
// shape but wrong provenance is accepted silently.
func (p *Parameter) SetData(shape []int, data []float64) error {
	if want := p.Size(); len(data) != want {
		return fmt.Errorf("parameter %s: got %d values, want %d", p.Name, len(data), want)
	}
	if !p.ShapeMatches(shape) {
		r, c := p.Value.Dims()
		return fmt.Errorf("parameter %s: shape %v is not assignable to (%d x %d)", p.Name, shape, r, c)
	}
	copy(p.Value.RawMatrix().Data, data)
	return nil
}

func squeeze(shape []int) []int {
	out := make([]int, 0, len(shape))
	for _, d := range shape {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

// Weight is a shape-annotated flat tensor read from a checkpoint, waiting to
// be assigned to a Parameter.
type Weight struct {
	Shape []int
	Data  []float64
}

// Size is the element count declared by the shape.
func (w Weight) Size() int {
	n := 1
	for _, d := range w.Shape {
		n *= d
	}
	return n
}
