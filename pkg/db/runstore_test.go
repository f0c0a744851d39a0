package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/model"
	"github.com/dpeerlab/picasso/pkg/tree"
)

func testStore(t *testing.T) *RunStore {
	t.Helper()
	dbh, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	store := NewRunStore(dbh)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func testRun(t *testing.T) (*matrix.Matrix, *model.Result) {
	t.Helper()

	m, err := matrix.New(
		[]string{"s1", "s2", "s3", "s4"},
		[]string{"f1", "f2"},
		[][]int{{0, 0}, {0, 0}, {1, 1}, {1, 1}},
		[]string{"0", "1"})
	require.NoError(t, err)

	root, err := tree.Assemble([]string{"r0", "r1"})
	require.NoError(t, err)

	res := &model.Result{
		Root: root,
		Assignments: map[string]string{
			"s1": "r0", "s2": "r0", "s3": "r1", "s4": "r1",
		},
		Terminal: []*model.Clone{
			{ID: "r0", Members: []int{0, 1}, Depth: 1, Status: model.CloneTerminal},
			{ID: "r1", Members: []int{2, 3}, Depth: 1, Status: model.CloneTerminal},
		},
	}
	return m, res
}

func TestSaveAndGetRun(t *testing.T) {
	store := testStore(t)
	m, res := testRun(t)
	ctx := context.Background()

	cfg := model.DefaultConfig()
	run_id, err := store.SaveRun(ctx, cfg, m, res)
	require.NoError(t, err)
	require.NotEmpty(t, run_id)

	rec, err := store.GetRun(ctx, run_id)
	require.NoError(t, err)
	assert.Equal(t, run_id, rec.RunID)
	assert.Equal(t, 4, rec.NSamples)
	assert.Equal(t, 2, rec.NFeatures)
	assert.Equal(t, "BIC", rec.TerminateBy)
	assert.Equal(t, cfg.MinCloneSize, rec.MinCloneSize)
	assert.Equal(t, "(r0:1,r1:1);", rec.Newick)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGetRunNotFound(t *testing.T) {
	store := testStore(t)
	_, err := store.GetRun(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestAssignmentsRoundTrip(t *testing.T) {
	store := testStore(t)
	m, res := testRun(t)
	ctx := context.Background()

	run_id, err := store.SaveRun(ctx, model.DefaultConfig(), m, res)
	require.NoError(t, err)

	got, err := store.GetAssignments(ctx, run_id)
	require.NoError(t, err)
	assert.Equal(t, res.Assignments, got)
}

func TestGetClones(t *testing.T) {
	store := testStore(t)
	m, res := testRun(t)
	ctx := context.Background()

	run_id, err := store.SaveRun(ctx, model.DefaultConfig(), m, res)
	require.NoError(t, err)

	clones, err := store.GetClones(ctx, run_id)
	require.NoError(t, err)
	require.Len(t, clones, 2)
	assert.Equal(t, "r0", clones[0].CloneID)
	assert.Equal(t, 2, clones[0].Size)
	assert.Equal(t, 1, clones[0].Depth)
	assert.Equal(t, "r1", clones[1].CloneID)
}

func TestListRuns(t *testing.T) {
	store := testStore(t)
	m, res := testRun(t)
	ctx := context.Background()

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	first, err := store.SaveRun(ctx, model.DefaultConfig(), m, res)
	require.NoError(t, err)
	second, err := store.SaveRun(ctx, model.DefaultConfig(), m, res)
	require.NoError(t, err)

	runs, err = store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	seen := map[string]bool{runs[0].RunID: true, runs[1].RunID: true}
	assert.True(t, seen[first])
	assert.True(t, seen[second])
}
