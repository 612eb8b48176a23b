// Package lab holds the demo loss-curve generator for the dashboard's
// training playground page. The numbers are synthetic; nothing is trained.
package lab

import (
	"math"
	"math/rand"
)

const (
	minIterations = 10
	maxIterations = 100
)

// Curve is a synthetic training run: a decaying loss series and a mock
// predicted peak magnitude.
type Curve struct {
	Loss      []float64 `json:"loss"`
	Predicted float64   `json:"predicted"`
}

// Generate produces a curve of the requested length. Iterations are
// clamped to [10, 100] so the chart always has something to draw.
func Generate(iterations int, rng *rand.Rand) Curve {
	if iterations < minIterations {
		iterations = minIterations
	}
	if iterations > maxIterations {
		iterations = maxIterations
	}

	loss := make([]float64, iterations)
	for i := range loss {
		loss[i] = math.Exp(-0.1*float64(i)) + rng.Float64()*0.05
	}
	return Curve{
		Loss:      loss,
		Predicted: 4.0 + rng.Float64()*2,
	}
}
