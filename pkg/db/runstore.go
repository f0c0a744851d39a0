// Persistence for finished reconstruction runs.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/model"
)

// ErrRunNotFound is returned when a run id has no stored record.
var ErrRunNotFound = errors.New("run not found")

// RunStore keeps finished runs in a SQLite database: one row per run plus
// its terminal clones and the sample-to-clone assignment table.
type RunStore struct {
	db *sql.DB
}

// RunRecord is the stored summary of one run.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	NSamples     int       `json:"n_samples"`
	NFeatures    int       `json:"n_features"`
	TerminateBy  string    `json:"terminate_by"`
	MinDepth     int       `json:"min_depth"`
	MaxDepth     int       `json:"max_depth"`
	MinCloneSize int       `json:"min_clone_size"`
	BICPenalty   float64   `json:"bic_penalty_strength"`
	Newick       string    `json:"newick"`
}

// CloneRecord is the stored summary of one terminal clone.
type CloneRecord struct {
	CloneID string `json:"clone_id"`
	Depth   int    `json:"depth"`
	Size    int    `json:"size"`
}

// NewRunStore wraps an open database handle.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// Init creates the schema when it does not exist yet.
func (s *RunStore) Init(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id         TEXT PRIMARY KEY,
		created_at     TEXT NOT NULL,
		n_samples      INTEGER NOT NULL,
		n_features     INTEGER NOT NULL,
		terminate_by   TEXT NOT NULL,
		min_depth      INTEGER NOT NULL,
		max_depth      INTEGER NOT NULL,
		min_clone_size INTEGER NOT NULL,
		bic_penalty    REAL NOT NULL,
		newick         TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS clones (
		run_id   TEXT NOT NULL,
		clone_id TEXT NOT NULL,
		depth    INTEGER NOT NULL,
		size     INTEGER NOT NULL,
		PRIMARY KEY (run_id, clone_id)
	);
	CREATE TABLE IF NOT EXISTS clone_assignments (
		run_id    TEXT NOT NULL,
		sample_id TEXT NOT NULL,
		clone_id  TEXT NOT NULL,
		PRIMARY KEY (run_id, sample_id)
	);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("runstore: init schema: %w", err)
	}
	return nil
}

// SaveRun stores a finished run under a fresh uuid and returns it. The run
// row, clone rows, and assignment rows go in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, cfg model.Config, m *matrix.Matrix, res *model.Result) (string, error) {

	run_id := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("runstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, n_samples, n_features, terminate_by,
			min_depth, max_depth, min_clone_size, bic_penalty, newick)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run_id, time.Now().UTC().Format(time.RFC3339), m.NSamples(), m.NFeatures(),
		cfg.TerminateBy.String(), cfg.MinDepth, cfg.MaxDepth, cfg.MinCloneSize,
		cfg.BICPenalty, res.Root.Newick())
	if err != nil {
		return "", fmt.Errorf("runstore: insert run: %w", err)
	}

	cloneStm, err := tx.PrepareContext(ctx,
		`INSERT INTO clones (run_id, clone_id, depth, size) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("runstore: prepare clones: %w", err)
	}
	defer cloneStm.Close()

	for _, c := range res.Terminal {
		if _, err := cloneStm.ExecContext(ctx, run_id, c.ID, c.Depth, c.Size()); err != nil {
			return "", fmt.Errorf("runstore: insert clone %s: %w", c.ID, err)
		}
	}

	assignStm, err := tx.PrepareContext(ctx,
		`INSERT INTO clone_assignments (run_id, sample_id, clone_id) VALUES (?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("runstore: prepare assignments: %w", err)
	}
	defer assignStm.Close()

	for _, sample_id := range m.SampleIDs() {
		if _, err := assignStm.ExecContext(ctx, run_id, sample_id, res.Assignments[sample_id]); err != nil {
			return "", fmt.Errorf("runstore: insert assignment %s: %w", sample_id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("runstore: commit: %w", err)
	}

	return run_id, nil
}

// GetRun fetches one run summary.
func (s *RunStore) GetRun(ctx context.Context, run_id string) (*RunRecord, error) {

	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, created_at, n_samples, n_features, terminate_by,
			min_depth, max_depth, min_clone_size, bic_penalty, newick
		 FROM runs WHERE run_id = ?`, run_id)

	var rec RunRecord
	var created string
	err := row.Scan(&rec.RunID, &created, &rec.NSamples, &rec.NFeatures,
		&rec.TerminateBy, &rec.MinDepth, &rec.MaxDepth, &rec.MinCloneSize,
		&rec.BICPenalty, &rec.Newick)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("runstore: scan run: %w", err)
	}

	rec.CreatedAt, err = time.Parse(time.RFC3339, created)
	if err != nil {
		return nil, fmt.Errorf("runstore: bad created_at %q: %w", created, err)
	}
	return &rec, nil
}

// ListRuns returns all stored run summaries, newest first.
func (s *RunStore) ListRuns(ctx context.Context) ([]*RunRecord, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, created_at, n_samples, n_features, terminate_by,
			min_depth, max_depth, min_clone_size, bic_penalty, newick
		 FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		var rec RunRecord
		var created string
		if err := rows.Scan(&rec.RunID, &created, &rec.NSamples, &rec.NFeatures,
			&rec.TerminateBy, &rec.MinDepth, &rec.MaxDepth, &rec.MinCloneSize,
			&rec.BICPenalty, &rec.Newick); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// GetClones returns the terminal clones of a run in id order.
func (s *RunStore) GetClones(ctx context.Context, run_id string) ([]*CloneRecord, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT clone_id, depth, size FROM clones WHERE run_id = ? ORDER BY clone_id`, run_id)
	if err != nil {
		return nil, fmt.Errorf("runstore: get clones: %w", err)
	}
	defer rows.Close()

	var out []*CloneRecord
	for rows.Next() {
		var rec CloneRecord
		if err := rows.Scan(&rec.CloneID, &rec.Depth, &rec.Size); err != nil {
			return nil, fmt.Errorf("runstore: scan clone: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// GetAssignments returns the sample-to-clone table of a run.
func (s *RunStore) GetAssignments(ctx context.Context, run_id string) (map[string]string, error) {

	rows, err := s.db.QueryContext(ctx,
		`SELECT sample_id, clone_id FROM clone_assignments WHERE run_id = ?`, run_id)
	if err != nil {
		return nil, fmt.Errorf("runstore: get assignments: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var sample_id, clone_id string
		if err := rows.Scan(&sample_id, &clone_id); err != nil {
			return nil, fmt.Errorf("runstore: scan assignment: %w", err)
		}
		out[sample_id] = clone_id
	}
	return out, rows.Err()
}
