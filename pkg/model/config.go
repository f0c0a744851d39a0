package model

import (
	"fmt"
)

// Criterion selects the statistical rule that decides whether a clone
// splits. It is resolved from its string form once, during config
// validation, never re-parsed per clone.
type Criterion int

const (
	CriterionBIC Criterion = iota
	CriterionConfidence
)

func (c Criterion) String() string {
	switch c {
	case CriterionBIC:
		return "BIC"
	case CriterionConfidence:
		return "confidence"
	default:
		return "unknown"
	}
}

// ParseCriterion maps the terminate_by configuration string to a Criterion.
// Unknown values are a configuration error; in particular the chi-squared
// criterion is a documented extension that is not implemented, and asking
// for it fails rather than silently falling back.
func ParseCriterion(s string) (Criterion, error) {
	switch s {
	case "BIC", "bic":
		return CriterionBIC, nil
	case "confidence":
		return CriterionConfidence, nil
	case "chi_squared":
		return 0, fmt.Errorf("terminate_by=chi_squared is not implemented")
	default:
		return 0, fmt.Errorf("unknown terminate_by %q", s)
	}
}

// Config is the full configuration surface of a reconstruction run.
type Config struct {
	// MinDepth forces splitting to continue this many levels before any
	// statistical termination check applies.
	MinDepth int

	// MaxDepth is a hard ceiling on tree depth. Zero means unbounded.
	MaxDepth int

	// MinCloneSize is the member count below which a clone never splits.
	MinCloneSize int

	// TerminateBy selects the statistical decision rule.
	TerminateBy Criterion

	// ConfidenceThreshold is the per-sample posterior cutoff used by the
	// confidence criterion and by the confident-fraction statistic.
	ConfidenceThreshold float64

	// ConfidenceProportion is the population-level fraction cutoff used
	// by the confidence criterion.
	ConfidenceProportion float64

	// BICPenalty multiplies the parameter-count penalty term in BIC.
	// Values above 1 bias toward coarser trees.
	BICPenalty float64

	// Seed drives EM initialization. Each clone derives its own random
	// source from Seed and its clone id, so results do not depend on
	// processing order.
	Seed int64

	// Workers bounds how many clone fits run concurrently. Values below
	// 1 are treated as 1.
	Workers int
}

// DefaultConfig mirrors the defaults of the reference implementation.
func DefaultConfig() Config {
	return Config{
		MinDepth:             0,
		MaxDepth:             0,
		MinCloneSize:         5,
		TerminateBy:          CriterionBIC,
		ConfidenceThreshold:  0.8,
		ConfidenceProportion: 0.8,
		BICPenalty:           1.0,
		Seed:                 1,
		Workers:              1,
	}
}

// Validate fails fast on a malformed configuration, before any clone is
// processed.
func (c Config) Validate() error {
	if c.MinCloneSize < 1 {
		return fmt.Errorf("config: min_clone_size must be positive, got %d", c.MinCloneSize)
	}
	if c.MinDepth < 0 {
		return fmt.Errorf("config: min_depth must be non-negative, got %d", c.MinDepth)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("config: max_depth must be non-negative, got %d", c.MaxDepth)
	}
	if c.MaxDepth > 0 && c.MaxDepth < c.MinDepth {
		return fmt.Errorf("config: max_depth %d is below min_depth %d", c.MaxDepth, c.MinDepth)
	}
	if c.TerminateBy != CriterionBIC && c.TerminateBy != CriterionConfidence {
		return fmt.Errorf("config: unknown terminate_by criterion %d", c.TerminateBy)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: assignment_confidence_threshold must be in (0,1], got %g", c.ConfidenceThreshold)
	}
	if c.ConfidenceProportion <= 0 || c.ConfidenceProportion > 1 {
		return fmt.Errorf("config: assignment_confidence_proportion must be in (0,1], got %g", c.ConfidenceProportion)
	}
	if c.BICPenalty < 1 {
		return fmt.Errorf("config: bic_penalty_strength must be >= 1, got %g", c.BICPenalty)
	}
	return nil
}
