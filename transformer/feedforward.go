package transformer

import (
	"fmt"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// Gelu applies the GPT-style tanh approximation elementwise.
func Gelu(x *mat.Dense) *mat.Dense {
	return utils.Apply(utils.GeluApply, x)
}

// PositionWiseFF is the two-layer feed-forward block applied independently at
// every position: expand to d_hid, Gelu, project back to n_state.
type PositionWiseFF struct {
	CFc      *Linear // (n_state -> d_hid)
	CFfnProj *Linear // (d_hid -> n_state)
}

func NewPositionWiseFF(nState, dHid, layerID int) *PositionWiseFF {
	return &PositionWiseFF{
		CFc:      NewLinear(fmt.Sprintf("layer_%d/c_fc", layerID), nState, dHid),
		CFfnProj: NewLinear(fmt.Sprintf("layer_%d/c_ffn_proj", layerID), dHid, nState),
	}
}

func (ff *PositionWiseFF) Forward(x *mat.Dense) *mat.Dense {
	return ff.CFfnProj.Forward(Gelu(ff.CFc.Forward(x)))
}

func (ff *PositionWiseFF) parameters() []*Parameter {
	return append(ff.CFc.parameters(), ff.CFfnProj.parameters()...)
}
