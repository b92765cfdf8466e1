package transformer

import (
	"fmt"
	"math"

	"github.com/leeminsik/BERT-keras/params"
	"github.com/leeminsik/BERT-keras/utils"
	"gonum.org/v1/gonum/mat"
)

// Embedding combines token, segment and position lookups into one (T x d)
// representation. Creation order of the three tables (segment, position,
// token) fixes their slots in the model's parameter enumeration; checkpoint
// loading depends on it.
type Embedding struct {
	Dim         int
	VocabSize   int
	MaxLen      int
	NumSegments int

	Segment  *Parameter // (num_segments x d)
	Position *Parameter // (max_len x d)
	Token    *Parameter // (vocab x d)

	OneDropout bool // one dropout on the sum vs one per lookup
	Drop       Dropout
}

func NewEmbedding(cfg params.Config) *Embedding {
	e := &Embedding{
		Dim:         cfg.EmbeddingDim,
		VocabSize:   cfg.VocabSize,
		MaxLen:      cfg.MaxLen,
		NumSegments: cfg.NumSegments,
		OneDropout:  cfg.UseOneEmbeddingDropout,
		Drop:        Dropout{Rate: cfg.EmbeddingDropout},
	}
	d := cfg.EmbeddingDim
	e.Segment = newParameter("SegmentEmbedding/weight", cfg.NumSegments, d,
		utils.NormalArray(cfg.NumSegments*d, 0.02))
	if cfg.TrainablePosEmbedding {
		e.Position = newParameter("PositionEmbedding/weight", cfg.MaxLen, d,
			utils.NormalArray(cfg.MaxLen*d, 0.02))
	} else {
		e.Position = newParameter("PositionEmbedding/weight", cfg.MaxLen, d,
			posEncodingMatrix(cfg.MaxLen, d))
		e.Position.Trainable = false
	}
	e.Token = newParameter("TokenEmbedding/weight", cfg.VocabSize, d,
		utils.NormalArray(cfg.VocabSize*d, 0.02))
	return e
}

// posEncodingMatrix is the fixed sinusoidal table used when the position
// embedding is not trainable: sin on even features, cos on odd ones.
func posEncodingMatrix(maxLen, d int) []float64 {
	data := make([]float64, maxLen*d)
	for pos := 0; pos < maxLen; pos++ {
		for j := 0; j < d; j++ {
			angle := float64(pos) / math.Pow(10000, float64(2*(j/2))/float64(d))
			if j%2 == 0 {
				data[pos*d+j] = math.Sin(angle)
			} else {
				data[pos*d+j] = math.Cos(angle)
			}
		}
	}
	return data
}

// Forward sums the three lookups for one sequence. Dropout is applied once to
// the sum, or independently to each lookup, per OneDropout.
func (e *Embedding) Forward(tokens, segments, posIDs []int, training bool) (*mat.Dense, error) {
	T := len(tokens)
	if len(segments) != T || len(posIDs) != T {
		return nil, fmt.Errorf("embedding: tokens/segments/positions lengths differ (%d/%d/%d)",
			T, len(segments), len(posIDs))
	}
	if T == 0 {
		return nil, fmt.Errorf("embedding: empty sequence")
	}
	if T > e.MaxLen {
		return nil, fmt.Errorf("embedding: sequence length %d exceeds max_len %d", T, e.MaxLen)
	}

	tok := mat.NewDense(T, e.Dim, nil)
	seg := mat.NewDense(T, e.Dim, nil)
	pos := mat.NewDense(T, e.Dim, nil)
	for t := 0; t < T; t++ {
		if id := tokens[t]; id < 0 || id >= e.VocabSize {
			return nil, fmt.Errorf("embedding: token id %d out of range [0,%d)", id, e.VocabSize)
		}
		if id := segments[t]; id < 0 || id >= e.NumSegments {
			return nil, fmt.Errorf("embedding: segment id %d out of range [0,%d)", id, e.NumSegments)
		}
		if id := posIDs[t]; id < 0 || id >= e.MaxLen {
			return nil, fmt.Errorf("embedding: position id %d out of range [0,%d)", id, e.MaxLen)
		}
		copy(tok.RawRowView(t), e.Token.Value.RawRowView(tokens[t]))
		copy(seg.RawRowView(t), e.Segment.Value.RawRowView(segments[t]))
		copy(pos.RawRowView(t), e.Position.Value.RawRowView(posIDs[t]))
	}

	if e.OneDropout {
		return e.Drop.Forward(utils.Add(utils.Add(tok, seg), pos), training), nil
	}
	tokD := e.Drop.Forward(tok, training)
	segD := e.Drop.Forward(seg, training)
	posD := e.Drop.Forward(pos, training)
	return utils.Add(utils.Add(tokD, segD), posD), nil
}

func (e *Embedding) parameters() []*Parameter {
	return []*Parameter{e.Segment, e.Position, e.Token}
}
