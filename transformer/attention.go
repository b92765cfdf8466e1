package transformer

import (
	"fmt"
	"math"
	"sync"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// SelfAttention computes scaled dot-product attention over a pre-projected
// (T x 3*n_state) input holding query, key and value blocks side by side.
// It owns no parameters; the projections live in MultiHeadAttention.
type SelfAttention struct {
	NHead      int
	NState     int
	dHead      int
	Drop       Dropout
	IgnoreMask bool
	Parallel   bool // fan the heads out over goroutines

	// per-head scratch resized when the sequence length changes
	scores []*mat.Dense
	attn   []*mat.Dense
	out    []*mat.Dense
	lastT  int
}

func NewSelfAttention(nHead, nState int, attentionDropout float64, ignoreMask bool) *SelfAttention {
	return &SelfAttention{
		NHead:      nHead,
		NState:     nState,
		dHead:      nState / nHead,
		Drop:       Dropout{Rate: attentionDropout},
		IgnoreMask: ignoreMask,
		scores:     make([]*mat.Dense, nHead),
		attn:       make([]*mat.Dense, nHead),
		out:        make([]*mat.Dense, nHead),
	}
}

// Forward, given qkv (T x 3*n_state) and a 0/1 keep-mask (T x T), returns
// (T x n_state). The mask is required unless IgnoreMask is set.
func (sa *SelfAttention) Forward(qkv, keep *mat.Dense, training bool) (*mat.Dense, error) {
	T, w := qkv.Dims()
	if sa.dHead*sa.NHead != sa.NState || w != 3*sa.NState {
		panic(fmt.Sprintf("self attention: cannot split (%d x %d) into %d heads of state %d", T, w, sa.NHead, sa.NState))
	}

	var bias *mat.Dense
	if !sa.IgnoreMask {
		if keep == nil {
			return nil, fmt.Errorf("self attention: mask required (masking not disabled)")
		}
		if mr, mc := keep.Dims(); mr != T || mc != T {
			return nil, fmt.Errorf("self attention: mask is (%d x %d), want (%d x %d)", mr, mc, T, T)
		}
		bias = utils.AttentionBias(keep)
	}

	if sa.lastT != T {
		for h := 0; h < sa.NHead; h++ {
			sa.scores[h] = mat.NewDense(T, T, nil)
			sa.attn[h] = mat.NewDense(T, T, nil)
			sa.out[h] = mat.NewDense(T, sa.dHead, nil)
		}
		sa.lastT = T
	}

	rescale := 1.0 / math.Sqrt(float64(sa.dHead))
	headsCat := mat.NewDense(T, sa.NState, nil)

	work := func(h int) {
		base := h * sa.dHead
		q := qkv.Slice(0, T, base, base+sa.dHead)
		k := qkv.Slice(0, T, sa.NState+base, sa.NState+base+sa.dHead)
		v := qkv.Slice(0, T, 2*sa.NState+base, 2*sa.NState+base+sa.dHead)

		sa.scores[h].Mul(q, k.T())
		sa.scores[h].Scale(rescale, sa.scores[h])

		var a *mat.Dense
		if bias != nil {
			a = utils.RowSoftmaxMaskedInPlace(sa.attn[h], sa.scores[h], bias)
		} else {
			a = utils.RowSoftmax(sa.scores[h])
		}
		a = sa.Drop.Forward(a, training)

		sa.out[h].Mul(a, v)
		dst := headsCat.Slice(0, T, base, base+sa.dHead).(*mat.Dense)
		dst.Copy(sa.out[h])
	}
	if sa.Parallel && sa.NHead > 1 {
		var wg sync.WaitGroup
		wg.Add(sa.NHead)
		for h := 0; h < sa.NHead; h++ {
			hh := h
			go func() { defer wg.Done(); work(hh) }()
		}
		wg.Wait()
	} else {
		for h := 0; h < sa.NHead; h++ {
			work(h)
		}
	}
	return headsCat, nil
}

// MultiHeadAttention wraps the qkv projection, the attention itself, and the
// output projection. Sub-layer names follow the layer_{i}/... template; other
// tooling matches weights by these names.
type MultiHeadAttention struct {
	CAttn *Linear // (n_state -> 3*n_state)
	Attn  *SelfAttention
	CProj *Linear // (n_state -> n_state)
}

func NewMultiHeadAttention(nState, nHead int, attentionDropout float64, ignoreMask bool, layerID int) *MultiHeadAttention {
	if nState%nHead != 0 {
		panic(fmt.Sprintf("multi-head attention: n_state %d not divisible by n_head %d", nState, nHead))
	}
	return &MultiHeadAttention{
		CAttn: NewLinear(fmt.Sprintf("layer_%d/c_attn", layerID), nState, 3*nState),
		Attn:  NewSelfAttention(nHead, nState, attentionDropout, ignoreMask),
		CProj: NewLinear(fmt.Sprintf("layer_%d/c_attn_proj", layerID), nState, nState),
	}
}

func (mha *MultiHeadAttention) Forward(x, keep *mat.Dense, training bool) (*mat.Dense, error) {
	h, err := mha.Attn.Forward(mha.CAttn.Forward(x), keep, training)
	if err != nil {
		return nil, err
	}
	return mha.CProj.Forward(h), nil
}

func (mha *MultiHeadAttention) parameters() []*Parameter {
	return append(mha.CAttn.parameters(), mha.CProj.parameters()...)
}
