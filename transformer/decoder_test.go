package transformer

import (
	"math"
	"testing"

	"github.com/leeminsik/BERT-keras/params"
	"gonum.org/v1/gonum/mat"
)

func tinyEmbeddingConfig() params.Config {
	cfg := params.Default()
	cfg.EmbeddingDim = 4
	cfg.VocabSize = 7
	cfg.MaxLen = 5
	cfg.NumHeads = 2
	cfg.NumLayers = 1
	cfg.FFHidden = 8
	cfg.EmbeddingDropout = 0
	cfg.AttentionDropout = 0
	cfg.ResidualDropout = 0
	return cfg
}

// logits[t,v] must always equal <x[t], emb[v]> + bias[v].
func checkTied(t *testing.T, x *mat.Dense, emb, bias *Parameter, logits *mat.Dense) {
	t.Helper()
	T, d := x.Dims()
	V, _ := emb.Dims()
	for i := 0; i < T; i++ {
		for v := 0; v < V; v++ {
			want := bias.Value.At(v, 0)
			for j := 0; j < d; j++ {
				want += x.At(i, j) * emb.Value.At(v, j)
			}
			if math.Abs(logits.At(i, v)-want) > 1e-12 {
				t.Fatalf("logits[%d,%d] = %g, want %g", i, v, logits.At(i, v), want)
			}
		}
	}
}

func TestTiedDecoderIsLiveTranspose(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	dec := NewTiedEmbeddingsTransposed("TiedDecoder", e.Token, 7)

	x := mat.NewDense(3, 4, []float64{
		0.5, -1, 2, 0,
		1, 1, 1, 1,
		-0.25, 0, 3, 0.5,
	})
	checkTied(t, x, e.Token, dec.Bias, dec.Forward(x))

	// simulate a training update to the embedding; the decoder must see it
	e.Token.Value.Set(2, 1, 9.0)
	e.Token.Value.Set(6, 3, -4.5)
	checkTied(t, x, e.Token, dec.Bias, dec.Forward(x))

	// and a bulk overwrite through the loading path
	V, d := e.Token.Dims()
	fresh := make([]float64, V*d)
	for i := range fresh {
		fresh[i] = float64(i) * 0.01
	}
	if err := e.Token.SetData([]int{V, d}, fresh); err != nil {
		t.Fatal(err)
	}
	checkTied(t, x, e.Token, dec.Bias, dec.Forward(x))
}

func TestTiedDecoderSharesStorage(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	dec := NewTiedEmbeddingsTransposed("TiedDecoder", e.Token, 7)
	if dec.Tied != e.Token {
		t.Fatal("decoder must hold the embedding's own parameter, not a copy")
	}
}

func TestTiedDecoderOwnsOnlyBias(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	dec := NewTiedEmbeddingsTransposed("TiedDecoder", e.Token, 7)
	ps := dec.parameters()
	if len(ps) != 1 || ps[0].Name != "TiedDecoder/bias" {
		t.Fatalf("decoder parameters: %+v, want only TiedDecoder/bias", ps)
	}
	if r, c := ps[0].Dims(); r != 7 || c != 1 {
		t.Fatalf("bias (%d x %d), want (7 x 1)", r, c)
	}
}

func TestTiedDecoderPanicsWithoutEmbedding(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("nil tied weight did not panic")
		}
	}()
	NewTiedEmbeddingsTransposed("TiedDecoder", nil, 7)
}

func TestTiedDecoderPanicsOnUnitsMismatch(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	defer func() {
		if recover() == nil {
			t.Fatal("mismatched units did not panic")
		}
	}()
	NewTiedEmbeddingsTransposed("TiedDecoder", e.Token, 9)
}
