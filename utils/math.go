// Package utils provides the gonum matrix helpers shared by the model layers.
package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix convention throughout the module: sequences are (T x d), one row per
// position. Vector parameters (biases, layer-norm scales) are (n x 1) columns.

func Dot(m, n mat.Matrix) *mat.Dense {
	r, _ := m.Dims()
	_, c := n.Dims()
	o := mat.NewDense(r, c, nil)
	o.Product(m, n)
	return o
}

func Apply(fn func(i, j int, v float64) float64, m mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Apply(fn, m)
	return o
}

func Add(m, n mat.Matrix) *mat.Dense {
	r, c := m.Dims()
	o := mat.NewDense(r, c, nil)
	o.Add(m, n)
	return o
}

// AddBias adds a (c x 1) bias down every row of m (r x c): column j gets bias[j].
func AddBias(m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	rb, cb := bias.Dims()
	if rb != c || cb != 1 {
		panic("AddBias: bias must be (c x 1)")
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		for j := 0; j < c; j++ {
			dst[j] = src[j] + bias.At(j, 0)
		}
	}
	return out
}

// RowSums returns per-row sums for a mat.Dense.
func RowSums(m *mat.Dense) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := 0; i < r; i++ {
		out[i] = floats.Sum(m.RawRowView(i))
	}
	return out
}

// -------- GELU activation (GPT-style) --------
// gelu(x) = 0.5 * x * (1 + tanh( sqrt(2/pi) * (x + 0.044715*x^3) ))
// Shape-compatible with mat.Dense.Apply: (i,j,v) -> value.

func GeluApply(i, j int, x float64) float64 {
	const k = 0.7978845608028654 // sqrt(2/pi)
	t := k * (x + 0.044715*x*x*x)
	return 0.5 * x * (1.0 + math.Tanh(t))
}

// -------- Masking --------
// Public masks are 0/1 keep-masks: mask[i,j] = 1 means position i may attend
// to position j. AttentionBias turns one into the additive form the masked
// softmax consumes.

// CausalMask returns (T x T) with 1 on and below the diagonal, 0 above.
func CausalMask(T int) *mat.Dense {
	out := mat.NewDense(T, T, nil)
	for i := 0; i < T; i++ {
		row := out.RawRowView(i)
		for j := 0; j <= i; j++ {
			row[j] = 1.0
		}
	}
	return out
}

// PadMask returns (T x T) keeping only the first validLen key positions.
func PadMask(validLen, T int) *mat.Dense {
	if validLen < 0 || validLen > T {
		panic("PadMask: validLen out of range")
	}
	out := mat.NewDense(T, T, nil)
	for i := 0; i < T; i++ {
		row := out.RawRowView(i)
		for j := 0; j < validLen; j++ {
			row[j] = 1.0
		}
	}
	return out
}

// AttentionBias converts a 0/1 keep-mask into an additive bias: 0 where
// attention is allowed, -1e9 where it is suppressed.
func AttentionBias(keep *mat.Dense) *mat.Dense {
	r, c := keep.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := keep.RawRowView(i)
		dst := out.RawRowView(i)
		for j := 0; j < c; j++ {
			dst[j] = (src[j] - 1.0) * 1e9
		}
	}
	return out
}

// -------- Softmax variants --------

// RowSoftmax applies softmax independently to each row across columns.
// Attention scores are (T x T); every row should sum to 1 afterwards.
func RowSoftmax(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		mx := floats.Max(src)
		for j := 0; j < c; j++ {
			dst[j] = math.Exp(src[j] - mx)
		}
		floats.Scale(1.0/floats.Sum(dst), dst)
	}
	return out
}

// RowSoftmaxMaskedInPlace writes softmax(m+bias) into dst (r x c) in place.
// bias is additive (see AttentionBias), not a 0/1 mask.
func RowSoftmaxMaskedInPlace(dst, m, bias *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	if dr, dc := dst.Dims(); dr != r || dc != c {
		panic("RowSoftmaxMaskedInPlace: dst shape mismatch")
	}
	if mr, mc := bias.Dims(); mr != r || mc != c {
		panic("RowSoftmaxMaskedInPlace: bias shape mismatch")
	}
	for i := 0; i < r; i++ {
		src := m.RawRowView(i)
		add := bias.RawRowView(i)
		out := dst.RawRowView(i)
		mx := src[0] + add[0]
		for j := 1; j < c; j++ {
			if v := src[j] + add[j]; v > mx {
				mx = v
			}
		}
		for j := 0; j < c; j++ {
			out[j] = math.Exp(src[j] + add[j] - mx)
		}
		floats.Scale(1.0/floats.Sum(out), out)
	}
	return dst
}
