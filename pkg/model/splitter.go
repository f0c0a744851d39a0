// Recursive clone splitting over an explicit worklist.
//
// The splitter repeatedly pulls an active clone, fits one- and two-component
// categorical mixtures over its members, and asks the termination policy
// whether to split. Accepted splits hard-assign members to the daughter with
// the higher posterior responsibility. Fits for clones in the same wave are
// independent and run on a bounded worker pool; every clone derives its own
// random source from the run seed and its id, so results do not depend on
// scheduling.

package model

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dpeerlab/picasso/logger"
	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/mixture"
	"github.com/dpeerlab/picasso/pkg/tree"
)

// ErrInvariant marks an internal-contract failure: overlapping clone
// membership or a sample left unassigned. It indicates a bug, not bad data,
// and is fatal to the run.
var ErrInvariant = errors.New("model: clone partition invariant violated")

// Splitter drives one reconstruction run over an immutable matrix.
type Splitter struct {
	cfg    Config
	mat    *matrix.Matrix
	policy Policy
}

// Result is the output of a finished run.
type Result struct {
	// Root is the assembled phylogeny. Leaves are non-empty terminal
	// clones labeled by clone id.
	Root *tree.Node

	// Assignments maps every sample id to its terminal clone id.
	Assignments map[string]string

	// Terminal lists the non-empty terminal clones in id order.
	Terminal []*Clone
}

// NewSplitter validates the configuration against the matrix and returns a
// ready splitter. Configuration errors are fatal before any clone is
// processed.
func NewSplitter(cfg Config, m *matrix.Matrix) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if m == nil || m.NSamples() == 0 {
		return nil, fmt.Errorf("model: empty matrix")
	}
	return &Splitter{cfg: cfg, mat: m, policy: NewPolicy(cfg)}, nil
}

// outcome is the verdict for one evaluated clone.
type outcome struct {
	clone    *Clone
	decision Decision
	fit2     *mixture.FitResult
}

// Run executes the worklist until no clone is active, then assembles the
// terminal clone ids into the phylogeny.
func (s *Splitter) Run() (*Result, error) {
	all := make([]int, s.mat.NSamples())
	for i := range all {
		all[i] = i
	}
	root := &Clone{ID: RootCloneID, Members: all, Depth: 0, Status: CloneActive}

	logger.Info("Starting clone splitting",
		zap.Int("samples", s.mat.NSamples()),
		zap.Int("features", s.mat.NFeatures()),
		zap.String("terminate_by", s.cfg.TerminateBy.String()))

	assignments := make(map[string]string, s.mat.NSamples())
	var terminal []*Clone

	frontier := []*Clone{root}
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool { return frontier[i].ID < frontier[j].ID })
		wave := frontier
		frontier = nil

		outcomes := make([]*outcome, len(wave))
		g := new(errgroup.Group)
		g.SetLimit(s.workers())
		for i, c := range wave {
			i, c := i, c
			g.Go(func() error {
				outcomes[i] = s.evaluate(c)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, oc := range outcomes {
			if oc.decision == Split {
				frontier = append(frontier, s.divide(oc)...)
				continue
			}
			oc.clone.Status = CloneTerminal
			terminal = append(terminal, oc.clone)
			for _, row := range oc.clone.Members {
				id := s.mat.SampleID(row)
				if prev, dup := assignments[id]; dup {
					return nil, fmt.Errorf("%w: sample %s assigned to both %s and %s",
						ErrInvariant, id, prev, oc.clone.ID)
				}
				assignments[id] = oc.clone.ID
			}
		}
	}

	if len(assignments) != s.mat.NSamples() {
		return nil, fmt.Errorf("%w: %d of %d samples assigned",
			ErrInvariant, len(assignments), s.mat.NSamples())
	}

	sort.Slice(terminal, func(i, j int) bool { return terminal[i].ID < terminal[j].ID })
	leafIDs := make([]string, 0, len(terminal))
	for _, c := range terminal {
		leafIDs = append(leafIDs, c.ID)
	}

	rootNode, err := tree.Assemble(leafIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvariant, err)
	}

	logger.Info("Splitting finished",
		zap.Int("terminal_clones", len(terminal)),
		zap.Int("tree_depth", rootNode.Depth()))

	return &Result{Root: rootNode, Assignments: assignments, Terminal: terminal}, nil
}

// evaluate decides split-or-terminate for one clone. Structural overrides
// fire before any fitting, so undersized or depth-capped clones never pay
// for an EM run. A fit failure is a forced terminate, never fatal.
func (s *Splitter) evaluate(c *Clone) *outcome {
	n := c.Size()
	if n < 2*s.cfg.MinCloneSize || (s.cfg.MaxDepth > 0 && c.Depth >= s.cfg.MaxDepth) {
		return &outcome{clone: c, decision: Terminate}
	}

	rng := s.cloneRNG(c.ID)
	fit1, err := mixture.Fit(rng, s.mat, c.Members, 1)
	if err != nil {
		logger.Debug("k=1 fit failed, terminating clone",
			zap.String("clone", c.ID), zap.Error(err))
		return &outcome{clone: c, decision: Terminate}
	}
	fit2, err := mixture.Fit(rng, s.mat, c.Members, 2)
	if err != nil {
		logger.Debug("k=2 fit failed, terminating clone",
			zap.String("clone", c.ID), zap.Error(err))
		return &outcome{clone: c, decision: Terminate}
	}

	score := ScoreModels(fit1, fit2, n, s.mat.NFeatures(), s.mat.NStates(),
		s.cfg.BICPenalty, s.cfg.ConfidenceThreshold)
	d := s.policy.Decide(c.Depth, n, &score)

	logger.Debug("Evaluated clone",
		zap.String("clone", c.ID),
		zap.Int("size", n),
		zap.Float64("bic1", score.BIC1),
		zap.Float64("bic2", score.BIC2),
		zap.Float64("confident_fraction", score.ConfidentFraction),
		zap.String("decision", d.String()))

	return &outcome{clone: c, decision: d, fit2: fit2}
}

// divide hard-assigns the clone's members to two daughters by maximum
// posterior responsibility (ties to component 0). An empty daughter is
// dropped on the spot: it terminates with no members and contributes no
// leaf.
func (s *Splitter) divide(oc *outcome) []*Clone {
	parent := oc.clone
	daughters := [2]*Clone{
		{ID: parent.ID + "0", Depth: parent.Depth + 1, Status: CloneActive},
		{ID: parent.ID + "1", Depth: parent.Depth + 1, Status: CloneActive},
	}

	for i, row := range parent.Members {
		comp, _ := oc.fit2.MaxResponsibility(i)
		daughters[comp].Members = append(daughters[comp].Members, row)
	}

	out := make([]*Clone, 0, 2)
	for _, d := range daughters {
		if d.Size() == 0 {
			logger.Debug("Dropping empty daughter clone", zap.String("clone", d.ID))
			continue
		}
		out = append(out, d)
	}
	return out
}

// cloneRNG derives a deterministic per-clone random source from the run
// seed and the clone id.
func (s *Splitter) cloneRNG(id string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(id))
	return rand.New(rand.NewSource(s.cfg.Seed ^ int64(h.Sum64())))
}

func (s *Splitter) workers() int {
	if s.cfg.Workers < 1 {
		return 1
	}
	return s.cfg.Workers
}
