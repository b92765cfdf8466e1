package transformer

import (
	"fmt"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// Linear is a position-wise affine map: (T x in) -> (T x out). The kernel is
// stored (in x out) so checkpoint kernels drop in without transposition.
type Linear struct {
	In, Out int
	Kernel  *Parameter // (in x out)
	Bias    *Parameter // (out x 1)
}

func NewLinear(name string, in, out int) *Linear {
	return &Linear{
		In:     in,
		Out:    out,
		Kernel: newParameter(name+"/kernel", in, out, utils.RandomArray(in*out, float64(in))),
		Bias:   newParameter(name+"/bias", out, 1, nil),
	}
}

func (l *Linear) Forward(x *mat.Dense) *mat.Dense {
	if _, c := x.Dims(); c != l.In {
		panic(fmt.Sprintf("linear %s: input width %d, want %d", l.Kernel.Name, c, l.In))
	}
	return utils.AddBias(utils.Dot(x, l.Kernel.Value), l.Bias.Value)
}

func (l *Linear) parameters() []*Parameter {
	return []*Parameter{l.Kernel, l.Bias}
}
