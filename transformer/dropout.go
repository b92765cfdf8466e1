package transformer

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Dropout zeroes entries with probability Rate and rescales survivors by
// 1/(1-Rate), so eval-time activations need no correction. Identity when not
// training or Rate <= 0. It uses the global math/rand RNG (seed in the caller
// for determinism).
type Dropout struct {
	Rate float64
}

func (d Dropout) Forward(x *mat.Dense, training bool) *mat.Dense {
	if !training || d.Rate <= 0 {
		return x
	}
	r, c := x.Dims()
	keep := 1.0 - d.Rate
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := x.RawRowView(i)
		dst := out.RawRowView(i)
		for j := 0; j < c; j++ {
			if rand.Float64() < keep {
				dst[j] = src[j] / keep
			}
		}
	}
	return out
}
