package transformer

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultLayerNormEps avoids division by zero in degenerate rows.
const DefaultLayerNormEps = 1e-6

// LayerNormalization normalizes each position (row) over the feature axis,
// then applies the learned scale and shift.
//
// The epsilon lands on the standard deviation, not inside the square root.
// Pretrained checkpoints were produced under this convention; moving the
// epsilon changes the numerics enough to degrade loaded weights.
type LayerNormalization struct {
	D     int
	Eps   float64
	Gamma *Parameter // (d x 1), init 1
	Beta  *Parameter // (d x 1), init 0
}

func NewLayerNormalization(name string, d int, eps float64) *LayerNormalization {
	ones := make([]float64, d)
	for i := range ones {
		ones[i] = 1.0
	}
	return &LayerNormalization{
		D:     d,
		Eps:   eps,
		Gamma: newParameter(name+"/gamma", d, 1, ones),
		Beta:  newParameter(name+"/beta", d, 1, nil),
	}
}

func (ln *LayerNormalization) Forward(x *mat.Dense) *mat.Dense {
	T, d := x.Dims()
	if d != ln.D {
		panic("LayerNormalization: feature width mismatch")
	}
	out := mat.NewDense(T, d, nil)
	for t := 0; t < T; t++ {
		row := x.RawRowView(t)
		mu := 0.0
		for _, v := range row {
			mu += v
		}
		mu /= float64(d)
		vr := 0.0
		for _, v := range row {
			diff := v - mu
			vr += diff * diff
		}
		vr /= float64(d)
		inv := 1.0 / (math.Sqrt(vr) + ln.Eps)
		dst := out.RawRowView(t)
		for i, v := range row {
			n := (v - mu) * inv
			dst[i] = ln.Gamma.Value.At(i, 0)*n + ln.Beta.Value.At(i, 0)
		}
	}
	return out
}

func (ln *LayerNormalization) parameters() []*Parameter {
	return []*Parameter{ln.Gamma, ln.Beta}
}
