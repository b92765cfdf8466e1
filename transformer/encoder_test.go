package transformer

import (
	"testing"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

func TestEncoderLayerCompositionOrder(t *testing.T) {
	// Forward must equal the post-norm composition built by hand from the
	// layer's own sublayers: normalize after each residual add, not before.
	nState, T := 8, 4
	l := NewEncoderLayer(nState, 2, 16, 0, 0, false, 0)
	x := mat.NewDense(T, nState, utils.RandomArray(T*nState, float64(nState)))
	keep := utils.CausalMask(T)

	got, err := l.Forward(x, keep, false)
	if err != nil {
		t.Fatal(err)
	}

	a, err := l.Attention.Forward(x, keep, false)
	if err != nil {
		t.Fatal(err)
	}
	n := l.Ln1.Forward(utils.Add(x, a))
	want := l.Ln2.Forward(utils.Add(n, l.Ffn.Forward(n)))
	if !mat.EqualApprox(got, want, 1e-12) {
		t.Fatal("block wiring deviates from the post-norm composition")
	}
	if r, c := got.Dims(); r != T || c != nState {
		t.Fatalf("output (%d x %d), want (%d x %d)", r, c, T, nState)
	}
}

func TestEncoderLayerForwardsAttentionErrors(t *testing.T) {
	l := NewEncoderLayer(8, 2, 16, 0, 0, false, 0)
	x := mat.NewDense(3, 8, nil)
	if _, err := l.Forward(x, nil, false); err == nil {
		t.Fatal("missing mask accepted")
	}
}

func TestEncoderLayerParameterOrder(t *testing.T) {
	l := NewEncoderLayer(8, 2, 16, 0, 0, false, 3)
	want := []string{
		"layer_3/c_attn/kernel", "layer_3/c_attn/bias",
		"layer_3/c_attn_proj/kernel", "layer_3/c_attn_proj/bias",
		"layer_3/ln_1/gamma", "layer_3/ln_1/beta",
		"layer_3/c_fc/kernel", "layer_3/c_fc/bias",
		"layer_3/c_ffn_proj/kernel", "layer_3/c_ffn_proj/bias",
		"layer_3/ln_2/gamma", "layer_3/ln_2/beta",
	}
	ps := l.parameters()
	if len(ps) != len(want) {
		t.Fatalf("block enumerates %d parameters, want %d", len(ps), len(want))
	}
	for i, name := range want {
		if ps[i].Name != name {
			t.Fatalf("parameter %d named %q, want %q", i, ps[i].Name, name)
		}
	}
}
