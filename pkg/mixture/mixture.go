// Categorical mixture fitting for clone splitting.
//
// A fit treats every genomic feature as conditionally independent given the
// latent component, so a component is just a per-feature categorical
// distribution. k=1 is the empirical frequency table; k=2 is estimated with
// expectation-maximization in log space.

package mixture

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/dpeerlab/picasso/pkg/matrix"
)

// ErrInsufficientData marks a clone too small to support the requested
// number of components. The splitter recovers from it by terminating the
// clone; it never aborts a run.
var ErrInsufficientData = errors.New("mixture: insufficient data for fit")

const (
	// MaxIter caps the EM loop so a fit is always finite.
	MaxIter = 100

	// ConvergenceTol is the absolute log-likelihood improvement below
	// which EM is considered converged.
	ConvergenceTol = 1e-6

	// probFloor keeps component probabilities away from exact zero so
	// log-likelihoods stay finite on degenerate features.
	probFloor = 1e-10
)

// FitResult holds fitted per-component categorical parameters together with
// per-sample posterior responsibilities. Resp rows follow the member order
// given to Fit and each row sums to 1.
type FitResult struct {
	K         int
	Probs     [][][]float64 // component x feature x state
	Weights   []float64     // component mixing proportions
	Resp      [][]float64   // member x component
	LogLik    float64
	Converged bool
	Iters     int
}

// Fit estimates a k-component categorical mixture over the given member rows
// of the matrix. k must be 1 or 2. The random source drives EM
// initialization and must be supplied by the caller; there is no package
// level randomness.
func Fit(rng *rand.Rand, m *matrix.Matrix, members []int, k int) (*FitResult, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: no members", ErrInsufficientData)
	}
	switch k {
	case 1:
		return fitSingle(m, members), nil
	case 2:
		if len(members) < 2*k {
			return nil, fmt.Errorf("%w: %d members for k=%d", ErrInsufficientData, len(members), k)
		}
		return fitPair(rng, m, members), nil
	default:
		return nil, fmt.Errorf("mixture: k=%d not supported", k)
	}
}

// fitSingle returns the empirical per-feature frequency table. All
// responsibility mass sits on the single component, so no iteration is
// needed and the result is always converged.
func fitSingle(m *matrix.Matrix, members []int) *FitResult {
	nf := m.NFeatures()
	ns := m.NStates()
	n := float64(len(members))

	probs := make([][]float64, nf)
	for f := 0; f < nf; f++ {
		counts := make([]float64, ns)
		for _, i := range members {
			counts[m.At(i, f)]++
		}
		for s := range counts {
			counts[s] /= n
		}
		probs[f] = counts
	}

	ll := 0.0
	for _, i := range members {
		for f := 0; f < nf; f++ {
			ll += math.Log(math.Max(probs[f][m.At(i, f)], probFloor))
		}
	}

	resp := make([][]float64, len(members))
	for i := range resp {
		resp[i] = []float64{1.0}
	}

	return &FitResult{
		K:         1,
		Probs:     [][][]float64{probs},
		Weights:   []float64{1.0},
		Resp:      resp,
		LogLik:    ll,
		Converged: true,
	}
}

// fitPair runs EM for a two-component mixture. Initialization perturbs the
// responsibilities around an even split; everything downstream is
// deterministic given the random source.
func fitPair(rng *rand.Rand, m *matrix.Matrix, members []int) *FitResult {
	nf := m.NFeatures()
	ns := m.NStates()
	n := len(members)
	const k = 2

	resp := make([][]float64, n)
	for i := range resp {
		r := 0.25 + 0.5*rng.Float64()
		resp[i] = []float64{r, 1 - r}
	}

	probs := make([][][]float64, k)
	weights := make([]float64, k)
	logBuf := make([]float64, k)

	prevLL := math.Inf(-1)
	ll := 0.0
	converged := false
	iters := 0

	for iter := 0; iter < MaxIter; iter++ {
		iters = iter + 1

		// M-step: weighted frequency tables per component.
		for c := 0; c < k; c++ {
			total := 0.0
			for i := 0; i < n; i++ {
				total += resp[i][c]
			}
			weights[c] = total / float64(n)

			comp := make([][]float64, nf)
			for f := 0; f < nf; f++ {
				counts := make([]float64, ns)
				for i, row := range members {
					counts[m.At(row, f)] += resp[i][c]
				}
				if total > 0 {
					for s := range counts {
						counts[s] = math.Max(counts[s]/total, probFloor)
					}
				} else {
					// Component lost all mass; keep a uniform table so
					// the E-step stays defined.
					for s := range counts {
						counts[s] = 1.0 / float64(ns)
					}
				}
				comp[f] = counts
			}
			probs[c] = comp
		}

		// E-step in log space.
		ll = 0.0
		for i, row := range members {
			for c := 0; c < k; c++ {
				lp := math.Log(math.Max(weights[c], probFloor))
				for f := 0; f < nf; f++ {
					lp += math.Log(probs[c][f][m.At(row, f)])
				}
				logBuf[c] = lp
			}
			norm := floats.LogSumExp(logBuf)
			ll += norm
			for c := 0; c < k; c++ {
				resp[i][c] = math.Exp(logBuf[c] - norm)
			}
		}

		if math.Abs(ll-prevLL) < ConvergenceTol {
			converged = true
			break
		}
		prevLL = ll
	}

	return &FitResult{
		K:         k,
		Probs:     probs,
		Weights:   weights,
		Resp:      resp,
		LogLik:    ll,
		Converged: converged,
		Iters:     iters,
	}
}

// MaxResponsibility returns, for member row i of the fit, the component with
// the highest posterior responsibility and that responsibility. Ties go to
// the lower component index.
func (fr *FitResult) MaxResponsibility(i int) (component int, resp float64) {
	best := 0
	bestVal := fr.Resp[i][0]
	for c := 1; c < fr.K; c++ {
		if fr.Resp[i][c] > bestVal {
			best = c
			bestVal = fr.Resp[i][c]
		}
	}
	return best, bestVal
}
