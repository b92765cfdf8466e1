package transformer

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestLayerNormMeanAndStd(t *testing.T) {
	d, T := 8, 5
	ln := NewLayerNormalization("ln_test", d, DefaultLayerNormEps)

	x := mat.NewDense(T, d, nil)
	for i := 0; i < T; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, math.Sin(float64(i*d+j))*3.0+float64(i))
		}
	}
	out := ln.Forward(x)

	// gamma=1, beta=0 at init, so rows should be standardized
	for i := 0; i < T; i++ {
		row := out.RawRowView(i)
		mu := 0.0
		for _, v := range row {
			mu += v
		}
		mu /= float64(d)
		if math.Abs(mu) > 1e-9 {
			t.Fatalf("row %d mean = %g, want ~0", i, mu)
		}
		vr := 0.0
		for _, v := range row {
			vr += (v - mu) * (v - mu)
		}
		std := math.Sqrt(vr / float64(d))
		if math.Abs(std-1.0) > 1e-4 {
			t.Fatalf("row %d std = %g, want ~1", i, std)
		}
	}
}

func TestLayerNormAffine(t *testing.T) {
	d := 4
	plain := NewLayerNormalization("ln_plain", d, DefaultLayerNormEps)
	scaled := NewLayerNormalization("ln_scaled", d, DefaultLayerNormEps)
	for i := 0; i < d; i++ {
		scaled.Gamma.Value.Set(i, 0, 2.0)
		scaled.Beta.Value.Set(i, 0, 0.5)
	}

	x := mat.NewDense(2, d, []float64{
		1, -2, 3, 0.5,
		4, 4.5, -1, 0,
	})
	base := plain.Forward(x)
	out := scaled.Forward(x)
	for i := 0; i < 2; i++ {
		for j := 0; j < d; j++ {
			want := 2.0*base.At(i, j) + 0.5
			if math.Abs(out.At(i, j)-want) > 1e-12 {
				t.Fatalf("affine output [%d,%d] = %g, want %g", i, j, out.At(i, j), want)
			}
		}
	}
}

func TestLayerNormEpsilonOnStd(t *testing.T) {
	// A constant row has std 0; the epsilon must sit on the std so the
	// result is finite (and zero before beta).
	d := 4
	ln := NewLayerNormalization("ln_const", d, DefaultLayerNormEps)
	x := mat.NewDense(1, d, []float64{7, 7, 7, 7})
	out := ln.Forward(x)
	for j := 0; j < d; j++ {
		if v := out.At(0, j); math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > 1e-9 {
			t.Fatalf("constant-row output[%d] = %v, want 0", j, v)
		}
	}
}

func TestLayerNormOwnsGammaBeta(t *testing.T) {
	ln := NewLayerNormalization("layer_3/ln_1", 6, DefaultLayerNormEps)
	ps := ln.parameters()
	if len(ps) != 2 {
		t.Fatalf("layer norm owns %d parameters, want 2", len(ps))
	}
	if ps[0].Name != "layer_3/ln_1/gamma" || ps[1].Name != "layer_3/ln_1/beta" {
		t.Fatalf("parameter names: %q, %q", ps[0].Name, ps[1].Name)
	}
	if ps[0].Value.At(0, 0) != 1.0 || ps[1].Value.At(0, 0) != 0.0 {
		t.Fatalf("init: gamma %v beta %v, want 1 and 0", ps[0].Value.At(0, 0), ps[1].Value.At(0, 0))
	}
}
