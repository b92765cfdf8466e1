package utils

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomArray returns 'size' samples from U(-1/sqrt(v), 1/sqrt(v)).
// It uses the global RNG (seed in the caller for determinism).
func RandomArray(size int, v float64) []float64 {
	dist := distuv.Uniform{
		Min: -1 / math.Sqrt(v),
		Max: 1 / math.Sqrt(v),
	}
	data := make([]float64, size)
	for i := range data {
		data[i] = dist.Rand()
	}
	return data
}

// NormalArray returns 'size' samples from N(0, sigma^2).
func NormalArray(size int, sigma float64) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	data := make([]float64, size)
	for i := range data {
		data[i] = dist.Rand()
	}
	return data
}
