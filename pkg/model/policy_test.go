package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func splitScore() *ModelScore {
	return &ModelScore{BIC1: 200, BIC2: 150, ConfidentFraction: 1.0, Converged: true}
}

func terminateScore() *ModelScore {
	return &ModelScore{BIC1: 150, BIC2: 200, ConfidentFraction: 0.0, Converged: true}
}

func TestPolicyStructuralOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinCloneSize = 5
	cfg.MaxDepth = 3
	p := NewPolicy(cfg)

	// Too small to yield two viable daughters, even with perfect evidence.
	assert.Equal(t, Terminate, p.Decide(0, 9, splitScore()))

	// At the depth ceiling.
	assert.Equal(t, Terminate, p.Decide(3, 100, splitScore()))

	// Both gates pass, evidence decides.
	assert.Equal(t, Split, p.Decide(1, 100, splitScore()))
}

func TestPolicyForcedSplitBelowMinDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDepth = 2
	cfg.MinCloneSize = 5
	p := NewPolicy(cfg)

	// The statistical test says terminate, but depth 0 is below
	// min_depth and the clone is big enough to split.
	assert.Equal(t, Split, p.Decide(0, 100, terminateScore()))

	// Below min_depth but too small for two viable daughters.
	assert.Equal(t, Terminate, p.Decide(1, 9, terminateScore()))

	// At min_depth the statistical test applies again.
	assert.Equal(t, Terminate, p.Decide(2, 100, terminateScore()))
}

func TestPolicyFitFailureTerminates(t *testing.T) {
	p := NewPolicy(DefaultConfig())

	assert.Equal(t, Terminate, p.Decide(1, 100, nil))

	nc := splitScore()
	nc.Converged = false
	assert.Equal(t, Terminate, p.Decide(1, 100, nc))
}

func TestPolicyBICCriterion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TerminateBy = CriterionBIC
	p := NewPolicy(cfg)

	assert.Equal(t, Split, p.Decide(1, 100, &ModelScore{BIC1: 100, BIC2: 99, Converged: true}))
	assert.Equal(t, Terminate, p.Decide(1, 100, &ModelScore{BIC1: 100, BIC2: 100, Converged: true}))
	assert.Equal(t, Terminate, p.Decide(1, 100, &ModelScore{BIC1: 100, BIC2: 101, Converged: true}))
}

func TestPolicyConfidenceCriterion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TerminateBy = CriterionConfidence
	score := &ModelScore{BIC1: 100, BIC2: 50, ConfidentFraction: 0.5, Converged: true}

	// Half the samples are ambiguous: a 0.9 proportion gate terminates,
	// a 0.4 gate splits.
	cfg.ConfidenceProportion = 0.9
	assert.Equal(t, Terminate, NewPolicy(cfg).Decide(1, 100, score))

	cfg.ConfidenceProportion = 0.4
	assert.Equal(t, Split, NewPolicy(cfg).Decide(1, 100, score))

	// The gate is inclusive at the boundary.
	cfg.ConfidenceProportion = 0.5
	assert.Equal(t, Split, NewPolicy(cfg).Decide(1, 100, score))
}

func TestPolicyIsPure(t *testing.T) {
	p := NewPolicy(DefaultConfig())
	score := splitScore()
	first := p.Decide(1, 50, score)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Decide(1, 50, score))
	}
}
