package transformer

import (
	"fmt"

	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// TiedEmbeddingsTransposed projects hidden states back onto the vocabulary
// using the transpose of the token-embedding weight. The kernel is the very
// same Parameter the embedding owns, read through at forward time, so any
// update to the embedding is immediately visible here. Only the bias belongs
// to this layer.
type TiedEmbeddingsTransposed struct {
	Units int
	Tied  *Parameter // token embedding (units x d), owned elsewhere
	Bias  *Parameter // (units x 1)
}

// NewTiedEmbeddingsTransposed must run after the embedding exists; it panics
// on a nil handle or a vocabulary size disagreement.
func NewTiedEmbeddingsTransposed(name string, tied *Parameter, units int) *TiedEmbeddingsTransposed {
	if tied == nil {
		panic("tied decoder: embedding weight does not exist yet")
	}
	if r, _ := tied.Dims(); r != units {
		panic(fmt.Sprintf("tied decoder: units %d but embedding has %d rows", units, r))
	}
	return &TiedEmbeddingsTransposed{
		Units: units,
		Tied:  tied,
		Bias:  newParameter(name+"/bias", units, 1, nil),
	}
}

// Forward maps (T x d) hidden states to (T x units) logits.
func (td *TiedEmbeddingsTransposed) Forward(x *mat.Dense) *mat.Dense {
	return utils.AddBias(utils.Dot(x, td.Tied.Value.T()), td.Bias.Value)
}

// parameters excludes the tied kernel: the embedding owns it, and listing it
// twice would corrupt positional checkpoint loading.
func (td *TiedEmbeddingsTransposed) parameters() []*Parameter {
	return []*Parameter{td.Bias}
}
