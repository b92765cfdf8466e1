// Package params holds the encoder hyperparameters.
package params

import "fmt"

// Special vocabulary rows appended after the regular tokens
// (pad, start, delimiter, classify, mask).
const SpecialCount = 5

// OpenAIVocabSize is the BPE vocabulary of the published GPT checkpoint,
// before the special rows are appended.
const OpenAIVocabSize = 40478

// Config collects every knob the model builder needs. Zero values are not
// usable; start from Default() or OpenAI() and override fields.
type Config struct {
	EmbeddingDim           int     // model width (n_state)
	EmbeddingDropout       float64 // dropout on the combined embedding
	VocabSize              int     // token rows, special tokens included
	MaxLen                 int     // position table size; sequences may be shorter
	TrainablePosEmbedding  bool    // false selects the fixed sinusoidal table
	NumHeads               int
	NumLayers              int
	AttentionDropout       float64 // dropout on attention weights
	UseOneEmbeddingDropout bool    // one dropout on the summed embedding vs one per table
	FFHidden               int     // position-wise feed-forward hidden width (d_hid)
	ResidualDropout        float64 // dropout on each sub-layer output
	NumSegments            int     // segment (sentence A/B) vocabulary size
	IgnoreMask             bool    // true drops the attention mask input entirely
	Debug                  bool    // log construction/loading diagnostics
}

// Default mirrors the historical BERT-style defaults: width 768, 12 layers,
// 12 heads, 30000-token vocabulary plus the special rows.
func Default() Config {
	return Config{
		EmbeddingDim:           768,
		EmbeddingDropout:       0.1,
		VocabSize:              30000 + SpecialCount,
		MaxLen:                 512,
		TrainablePosEmbedding:  true,
		NumHeads:               12,
		NumLayers:              12,
		AttentionDropout:       0.1,
		UseOneEmbeddingDropout: false,
		FFHidden:               768 * 4,
		ResidualDropout:        0.1,
		NumSegments:            2,
	}
}

// OpenAI is the GPT shape the published checkpoint was trained with:
// 40478 BPE tokens plus the special rows, 512 positions, width 768.
func OpenAI() Config {
	c := Default()
	c.VocabSize = OpenAIVocabSize + SpecialCount
	return c
}

// HeadDim is the per-head width. Call Validate first; this divides blindly.
func (c Config) HeadDim() int {
	return c.EmbeddingDim / c.NumHeads
}

// Validate reports the first unusable field. A Config that passes here can be
// handed to the model builder without construction panics.
func (c Config) Validate() error {
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("params: EmbeddingDim must be positive, got %d", c.EmbeddingDim)
	}
	if c.NumHeads <= 0 {
		return fmt.Errorf("params: NumHeads must be positive, got %d", c.NumHeads)
	}
	if c.EmbeddingDim%c.NumHeads != 0 {
		return fmt.Errorf("params: EmbeddingDim %d not divisible by NumHeads %d", c.EmbeddingDim, c.NumHeads)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("params: NumLayers must be positive, got %d", c.NumLayers)
	}
	if c.VocabSize <= 0 {
		return fmt.Errorf("params: VocabSize must be positive, got %d", c.VocabSize)
	}
	if c.MaxLen <= 0 {
		return fmt.Errorf("params: MaxLen must be positive, got %d", c.MaxLen)
	}
	if c.FFHidden <= 0 {
		return fmt.Errorf("params: FFHidden must be positive, got %d", c.FFHidden)
	}
	if c.NumSegments < 1 {
		return fmt.Errorf("params: NumSegments must be at least 1, got %d", c.NumSegments)
	}
	for _, d := range []struct {
		name string
		rate float64
	}{
		{"EmbeddingDropout", c.EmbeddingDropout},
		{"AttentionDropout", c.AttentionDropout},
		{"ResidualDropout", c.ResidualDropout},
	} {
		if d.rate < 0 || d.rate >= 1 {
			return fmt.Errorf("params: %s must be in [0,1), got %g", d.name, d.rate)
		}
	}
	return nil
}
