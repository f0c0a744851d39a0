package model

import (
	"math"

	"github.com/dpeerlab/picasso/pkg/mixture"
)

// ModelScore carries the model-selection and confidence statistics for one
// candidate clone, computed from its k=1 and k=2 fits.
type ModelScore struct {
	BIC1 float64
	BIC2 float64

	// ConfidentFraction is the share of members whose maximum posterior
	// responsibility under the k=2 fit clears the configured per-sample
	// threshold.
	ConfidentFraction float64

	// Converged reflects the k=2 fit. A non-converged fit counts as no
	// evidence to split.
	Converged bool
}

// freeParams counts the free parameters of a k-component categorical
// mixture: k per-feature tables with C-1 free entries each, plus k-1 mixing
// proportions. Counted the same way for both fits so the BIC comparison is
// meaningful.
func freeParams(k, features, states int) int {
	return k*features*(states-1) + (k - 1)
}

// bic computes -2*LL + penalty * params * ln(n). Lower is better.
func bic(logLik float64, params int, n int, penalty float64) float64 {
	return -2*logLik + penalty*float64(params)*math.Log(float64(n))
}

// ScoreModels computes the ModelScore for a clone of n members. Both fits
// must be over the same members; features and states describe the backing
// matrix. Deterministic given its inputs.
func ScoreModels(fit1, fit2 *mixture.FitResult, n, features, states int, penalty, confThreshold float64) ModelScore {
	score := ModelScore{
		BIC1:      bic(fit1.LogLik, freeParams(1, features, states), n, penalty),
		BIC2:      bic(fit2.LogLik, freeParams(2, features, states), n, penalty),
		Converged: fit2.Converged,
	}

	confident := 0
	for i := range fit2.Resp {
		if _, r := fit2.MaxResponsibility(i); r > confThreshold {
			confident++
		}
	}
	if n > 0 {
		score.ConfidentFraction = float64(confident) / float64(n)
	}
	return score
}
