package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dpeerlab/picasso/pkg/mixture"
)

func fakeFits(ll1, ll2 float64, resp [][]float64) (*mixture.FitResult, *mixture.FitResult) {
	fit1 := &mixture.FitResult{K: 1, LogLik: ll1, Converged: true}
	fit2 := &mixture.FitResult{K: 2, LogLik: ll2, Resp: resp, Converged: true}
	return fit1, fit2
}

func uniformResp(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{0.5, 0.5}
	}
	return out
}

func TestScoreModelsBIC(t *testing.T) {
	const (
		n        = 50
		features = 10
		states   = 2
	)
	fit1, fit2 := fakeFits(-100, -80, uniformResp(n))

	score := ScoreModels(fit1, fit2, n, features, states, 1.0, 0.75)

	// k*F*(C-1) + (k-1): 10 params for k=1, 21 for k=2.
	wantBIC1 := 200 + 10*math.Log(50)
	wantBIC2 := 160 + 21*math.Log(50)
	assert.InDelta(t, wantBIC1, score.BIC1, 1e-9)
	assert.InDelta(t, wantBIC2, score.BIC2, 1e-9)
	assert.True(t, score.Converged)
}

func TestScoreModelsPenaltyStrength(t *testing.T) {
	fit1, fit2 := fakeFits(-100, -80, uniformResp(50))

	weak := ScoreModels(fit1, fit2, 50, 10, 2, 1.0, 0.75)
	strong := ScoreModels(fit1, fit2, 50, 10, 2, 5.0, 0.75)

	// A stronger penalty widens the gap in favor of the simpler model.
	assert.Greater(t, strong.BIC2-strong.BIC1, weak.BIC2-weak.BIC1)
}

func TestScoreModelsConfidentFraction(t *testing.T) {
	resp := [][]float64{
		{0.95, 0.05},
		{0.10, 0.90},
		{0.60, 0.40},
		{0.50, 0.50},
	}
	fit1, fit2 := fakeFits(-10, -8, resp)

	score := ScoreModels(fit1, fit2, 4, 3, 2, 1.0, 0.75)
	assert.InDelta(t, 0.5, score.ConfidentFraction, 1e-12)

	// The per-sample gate is strict: a posterior exactly at the
	// threshold does not count.
	score = ScoreModels(fit1, fit2, 4, 3, 2, 1.0, 0.9)
	assert.InDelta(t, 0.25, score.ConfidentFraction, 1e-12)
}

func TestScoreModelsCarriesNonConvergence(t *testing.T) {
	fit1, fit2 := fakeFits(-10, -8, uniformResp(4))
	fit2.Converged = false

	score := ScoreModels(fit1, fit2, 4, 3, 2, 1.0, 0.75)
	assert.False(t, score.Converged)
}
