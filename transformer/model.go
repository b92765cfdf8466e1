package transformer

import (
	"fmt"
	"log"
	"sync"

	"github.com/leeminsik/BERT-keras/params"
	"gonum.org/v1/gonum/mat"
)

// Model is the assembled encoder: embedding, a stack of encoder layers, and
// the weight-tied decoder head producing per-position vocabulary logits.
type Model struct {
	Config  params.Config
	Embed   *Embedding
	Blocks  []*EncoderLayer
	Decoder *TiedEmbeddingsTransposed

	// Training enables dropout in Forward.
	Training bool

	paramList   []*Parameter
	paramByName map[string]*Parameter

	debugOnce sync.Once
}

// New builds the full model from a validated config. Parameter registration
// order is the positional loading contract: segment, position and token
// embeddings, then each block's weights in block order, then the decoder
// bias. Reordering construction silently corrupts positional loads whose
// shapes happen to coincide, so don't.
func New(cfg params.Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Model{Config: cfg}
	m.Embed = NewEmbedding(cfg)
	m.Blocks = make([]*EncoderLayer, cfg.NumLayers)
	for i := range m.Blocks {
		m.Blocks[i] = NewEncoderLayer(cfg.EmbeddingDim, cfg.NumHeads, cfg.FFHidden,
			cfg.ResidualDropout, cfg.AttentionDropout, cfg.IgnoreMask, i)
	}
	m.Decoder = NewTiedEmbeddingsTransposed("TiedDecoder", m.Embed.Token, cfg.VocabSize)

	m.paramList = m.Embed.parameters()
	for _, b := range m.Blocks {
		m.paramList = append(m.paramList, b.parameters()...)
	}
	m.paramList = append(m.paramList, m.Decoder.parameters()...)

	m.paramByName = make(map[string]*Parameter, len(m.paramList))
	for _, p := range m.paramList {
		if _, dup := m.paramByName[p.Name]; dup {
			return nil, fmt.Errorf("model: duplicate parameter name %q", p.Name)
		}
		m.paramByName[p.Name] = p
	}
	if cfg.Debug {
		log.Printf("transformer: built %d layers, %d parameters", cfg.NumLayers, len(m.paramList))
	}
	return m, nil
}

// Forward runs the encoder over a batch. tokens and segments hold one id row
// per example. masks holds one (T x T) keep-mask per example; it must be
// omitted when the config ignores masking and supplied otherwise. Returns the
// final hidden states (T x d) and vocabulary logits (T x vocab) per example.
func (m *Model) Forward(tokens, segments [][]int, masks []*mat.Dense) (hidden, logits []*mat.Dense, err error) {
	if len(tokens) == 0 {
		return nil, nil, fmt.Errorf("model: empty batch")
	}
	if len(segments) != len(tokens) {
		return nil, nil, fmt.Errorf("model: %d token rows but %d segment rows", len(tokens), len(segments))
	}
	if m.Config.IgnoreMask {
		if masks != nil {
			return nil, nil, fmt.Errorf("model: masking is disabled but %d masks were provided", len(masks))
		}
	} else if len(masks) != len(tokens) {
		return nil, nil, fmt.Errorf("model: %d token rows but %d masks", len(tokens), len(masks))
	}

	hidden = make([]*mat.Dense, len(tokens))
	logits = make([]*mat.Dense, len(tokens))
	for b := range tokens {
		x, err := m.Embed.Forward(tokens[b], segments[b], PositionIDs(len(tokens[b])), m.Training)
		if err != nil {
			return nil, nil, fmt.Errorf("example %d: %w", b, err)
		}
		var keep *mat.Dense
		if !m.Config.IgnoreMask {
			keep = masks[b]
		}
		for _, blk := range m.Blocks {
			if x, err = blk.Forward(x, keep, m.Training); err != nil {
				return nil, nil, fmt.Errorf("example %d: %w", b, err)
			}
		}
		hidden[b] = x
		logits[b] = m.Decoder.Forward(x)
	}
	if m.Config.Debug {
		m.debugOnce.Do(func() {
			hr, hc := hidden[0].Dims()
			lr, lc := logits[0].Dims()
			log.Printf("transformer: hidden (%d x %d), logits (%d x %d)", hr, hc, lr, lc)
		})
	}
	return hidden, logits, nil
}

// SetParallel toggles per-head goroutine fan-out in every attention block.
func (m *Model) SetParallel(on bool) {
	for _, b := range m.Blocks {
		b.Attention.Attn.Parallel = on
	}
}

// Parameters returns the registry in registration order. The slice is a copy;
// the parameters are not.
func (m *Model) Parameters() []*Parameter {
	return append([]*Parameter(nil), m.paramList...)
}

// Parameter looks up a weight by its templated name.
func (m *Model) Parameter(name string) (*Parameter, bool) {
	p, ok := m.paramByName[name]
	return p, ok
}

// SetParameters overwrites every parameter positionally. The count must match
// and each entry must pass the target parameter's shape check. An entry whose
// shape fits a mispositioned slot is assigned without complaint; ordering is
// the caller's contract.
func (m *Model) SetParameters(weights []Weight) error {
	if len(weights) != len(m.paramList) {
		return fmt.Errorf("model: got %d weights, want %d", len(weights), len(m.paramList))
	}
	for i, w := range weights {
		if err := m.paramList[i].SetData(w.Shape, w.Data); err != nil {
			return fmt.Errorf("weight %d: %w", i, err)
		}
	}
	return nil
}

// SetParametersByName assigns weights by stable name instead of position.
// Unknown names and missing names are both errors.
func (m *Model) SetParametersByName(weights map[string]Weight) error {
	if len(weights) != len(m.paramList) {
		return fmt.Errorf("model: got %d weights, want %d", len(weights), len(m.paramList))
	}
	for name, w := range weights {
		p, ok := m.paramByName[name]
		if !ok {
			return fmt.Errorf("model: no parameter named %q", name)
		}
		if err := p.SetData(w.Shape, w.Data); err != nil {
			return err
		}
	}
	return nil
}
