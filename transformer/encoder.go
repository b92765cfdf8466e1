package transformer

import (
	"fmt"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// EncoderLayer is one post-norm Transformer block: each sub-layer output is
// added to its input and normalized afterwards. Checkpoints trained under
// this convention stop matching if the block is rearranged to pre-norm.
type EncoderLayer struct {
	Attention *MultiHeadAttention
	Drop1     Dropout
	Ln1       *LayerNormalization
	Ffn       *PositionWiseFF
	Drop2     Dropout
	Ln2       *LayerNormalization
}

func NewEncoderLayer(nState, nHead, dHid int, residualDropout, attentionDropout float64, ignoreMask bool, layerID int) *EncoderLayer {
	return &EncoderLayer{
		Attention: NewMultiHeadAttention(nState, nHead, attentionDropout, ignoreMask, layerID),
		Drop1:     Dropout{Rate: residualDropout},
		Ln1:       NewLayerNormalization(fmt.Sprintf("layer_%d/ln_1", layerID), nState, DefaultLayerNormEps),
		Ffn:       NewPositionWiseFF(nState, dHid, layerID),
		Drop2:     Dropout{Rate: residualDropout},
		Ln2:       NewLayerNormalization(fmt.Sprintf("layer_%d/ln_2", layerID), nState, DefaultLayerNormEps),
	}
}

func (l *EncoderLayer) Forward(x, keep *mat.Dense, training bool) (*mat.Dense, error) {
	a, err := l.Attention.Forward(x, keep, training)
	if err != nil {
		return nil, err
	}
	n := l.Ln1.Forward(utils.Add(x, l.Drop1.Forward(a, training)))
	f := l.Ffn.Forward(n)
	return l.Ln2.Forward(utils.Add(n, l.Drop2.Forward(f, training))), nil
}

// parameters lists this block's weights in checkpoint order: attention
// projections, first norm, feed-forward, second norm.
func (l *EncoderLayer) parameters() []*Parameter {
	ps := l.Attention.parameters()
	ps = append(ps, l.Ln1.parameters()...)
	ps = append(ps, l.Ffn.parameters()...)
	ps = append(ps, l.Ln2.parameters()...)
	return ps
}
