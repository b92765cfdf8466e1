package transformer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestPositionIDs(t *testing.T) {
	ids := PositionIDs(5)
	if len(ids) != 5 {
		t.Fatalf("got %d ids, want 5", len(ids))
	}
	for i, id := range ids {
		if id != i {
			t.Fatalf("ids[%d] = %d, want %d", i, id, i)
		}
	}
	if got := PositionIDs(0); len(got) != 0 {
		t.Fatalf("PositionIDs(0) = %v, want empty", got)
	}
}

func TestEmbeddingSumsThreeLookups(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	tokens := []int{2, 5}
	segments := []int{1, 0}
	pos := PositionIDs(2)

	out, err := e.Forward(tokens, segments, pos, false)
	if err != nil {
		t.Fatal(err)
	}
	if r, c := out.Dims(); r != 2 || c != 4 {
		t.Fatalf("output (%d x %d), want (2 x 4)", r, c)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 4; j++ {
			want := e.Token.Value.At(tokens[i], j) +
				e.Segment.Value.At(segments[i], j) +
				e.Position.Value.At(pos[i], j)
			if math.Abs(out.At(i, j)-want) > 1e-12 {
				t.Fatalf("out[%d,%d] = %g, want %g", i, j, out.At(i, j), want)
			}
		}
	}
}

func TestEmbeddingDropoutModesAgreeAtEval(t *testing.T) {
	cfg := tinyEmbeddingConfig()
	cfg.EmbeddingDropout = 0.5

	cfg.UseOneEmbeddingDropout = true
	one := NewEmbedding(cfg)
	cfg.UseOneEmbeddingDropout = false
	per := NewEmbedding(cfg)

	// same tables so the outputs are comparable
	per.Token = one.Token
	per.Segment = one.Segment
	per.Position = one.Position

	tokens, segments := []int{1, 3, 4}, []int{0, 1, 1}
	a, err := one.Forward(tokens, segments, PositionIDs(3), false)
	if err != nil {
		t.Fatal(err)
	}
	b, err := per.Forward(tokens, segments, PositionIDs(3), false)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.EqualApprox(a, b, 1e-12) {
		t.Fatal("dropout placement must not matter outside training")
	}
}

func TestEmbeddingValidation(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())

	if _, err := e.Forward([]int{7}, []int{0}, []int{0}, false); err == nil {
		t.Fatal("token id beyond vocab accepted")
	}
	if _, err := e.Forward([]int{0}, []int{2}, []int{0}, false); err == nil {
		t.Fatal("segment id beyond table accepted")
	}
	if _, err := e.Forward([]int{0}, []int{0}, []int{9}, false); err == nil {
		t.Fatal("position beyond max_len accepted")
	}
	if _, err := e.Forward([]int{0, 1}, []int{0}, []int{0, 1}, false); err == nil {
		t.Fatal("mismatched lengths accepted")
	}
	if _, err := e.Forward(nil, nil, nil, false); err == nil {
		t.Fatal("empty sequence accepted")
	}
	long := []int{0, 1, 2, 3, 4, 5}
	if _, err := e.Forward(long, make([]int, 6), PositionIDs(6), false); err == nil {
		t.Fatal("sequence longer than max_len accepted")
	}
}

func TestEmbeddingShorterThanMaxLen(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	out, err := e.Forward([]int{0, 1, 2}, []int{0, 0, 1}, PositionIDs(3), false)
	if err != nil {
		t.Fatal(err)
	}
	if r, _ := out.Dims(); r != 3 {
		t.Fatalf("got %d rows, want 3", r)
	}
}

func TestSinusoidalPositionTable(t *testing.T) {
	cfg := tinyEmbeddingConfig()
	cfg.TrainablePosEmbedding = false
	e := NewEmbedding(cfg)

	if e.Position.Trainable {
		t.Fatal("sinusoidal table must not be trainable")
	}
	if e.Token.Trainable == false || e.Segment.Trainable == false {
		t.Fatal("token/segment tables must stay trainable")
	}
	// pos 0: sin(0)=0 on even features, cos(0)=1 on odd ones
	if v := e.Position.Value.At(0, 0); v != 0 {
		t.Fatalf("pos[0,0] = %g, want 0", v)
	}
	if v := e.Position.Value.At(0, 1); v != 1 {
		t.Fatalf("pos[0,1] = %g, want 1", v)
	}
	if v := e.Position.Value.At(1, 0); math.Abs(v-math.Sin(1)) > 1e-12 {
		t.Fatalf("pos[1,0] = %g, want sin(1)", v)
	}
}

func TestEmbeddingEnumerationOrder(t *testing.T) {
	e := NewEmbedding(tinyEmbeddingConfig())
	ps := e.parameters()
	want := []string{"SegmentEmbedding/weight", "PositionEmbedding/weight", "TokenEmbedding/weight"}
	if len(ps) != 3 {
		t.Fatalf("got %d parameters, want 3", len(ps))
	}
	for i, name := range want {
		if ps[i].Name != name {
			t.Fatalf("parameter %d named %q, want %q", i, ps[i].Name, name)
		}
	}
}
