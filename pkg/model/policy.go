package model

// Decision is the verdict of the termination policy for one candidate clone.
type Decision int

const (
	Terminate Decision = iota
	Split
)

func (d Decision) String() string {
	if d == Split {
		return "split"
	}
	return "terminate"
}

// Policy answers "split or terminate" for a candidate clone. It is a pure
// function of the configuration and its arguments; the same inputs always
// give the same verdict.
type Policy struct {
	cfg Config
}

// NewPolicy wraps a validated configuration.
func NewPolicy(cfg Config) Policy {
	return Policy{cfg: cfg}
}

// Decide applies, in order: structural overrides, the fit-quality gate, the
// forced-split window below min_depth, then the configured statistical
// criterion. score is nil when the k=2 fit failed outright; that and a
// non-converged fit both count as no evidence to split.
func (p Policy) Decide(depth, n int, score *ModelScore) Decision {
	// A split must be able to yield two viable daughters, so the size
	// gate is 2*min_clone_size, not min_clone_size.
	if n < 2*p.cfg.MinCloneSize {
		return Terminate
	}
	if p.cfg.MaxDepth > 0 && depth >= p.cfg.MaxDepth {
		return Terminate
	}
	if score == nil || !score.Converged {
		return Terminate
	}
	if depth < p.cfg.MinDepth {
		// Forced split bypasses the statistical test.
		return Split
	}

	switch p.cfg.TerminateBy {
	case CriterionBIC:
		if score.BIC2 < score.BIC1 {
			return Split
		}
		return Terminate
	case CriterionConfidence:
		if score.ConfidentFraction >= p.cfg.ConfidenceProportion {
			return Split
		}
		return Terminate
	default:
		// Unreachable after Validate; refuse to split on an unknown rule.
		return Terminate
	}
}
