package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dpeerlab/picasso/logger"
	ppdb "github.com/dpeerlab/picasso/pkg/db"
	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/model"
	"github.com/dpeerlab/picasso/pkg/tree"
)

func TestMain(m *testing.M) {
	logger.InitNop()
	os.Exit(m.Run())
}

// testServer stores one finished run and returns a mux with the run routes
// plus the stored run id.
func testServer(t *testing.T) (*http.ServeMux, string) {
	t.Helper()

	dbh, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	store := ppdb.NewRunStore(dbh)
	require.NoError(t, store.Init(context.Background()))

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

	run_id, err := store.SaveRun(context.Background(), model.DefaultConfig(), m, res)
	require.NoError(t, err)

	sctx := &StoreContext{Store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", HealthCheck)
	mux.HandleFunc("GET /runs", sctx.ListRunsHandler)
	mux.HandleFunc("GET /runs/{run_id}", sctx.RunPage)
	mux.HandleFunc("GET /runs/{run_id}/tree", sctx.RunTreeHandler)
	mux.HandleFunc("GET /runs/{run_id}/assignments", sctx.RunAssignmentsHandler)

	return mux, run_id
}

func doGet(t *testing.T, mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	mux, _ := testServer(t)

	rec := doGet(t, mux, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Health)
}

func TestListRuns(t *testing.T) {
	mux, run_id := testServer(t)

	rec := doGet(t, mux, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []*ppdb.RunRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run_id, runs[0].RunID)
}

func TestRunPage(t *testing.T) {
	mux, run_id := testServer(t)

	rec := doGet(t, mux, "/runs/"+run_id)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary RunSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, run_id, summary.Run.RunID)
	require.Len(t, summary.Clones, 2)
	assert.Equal(t, "r0", summary.Clones[0].CloneID)
}

func TestRunPageNotFound(t *testing.T) {
	mux, _ := testServer(t)

	rec := doGet(t, mux, "/runs/nonexistent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunTree(t *testing.T) {
	mux, run_id := testServer(t)

	rec := doGet(t, mux, "/runs/"+run_id+"/tree")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, "(r0:1,r1:1);", strings.TrimSpace(rec.Body.String()))
}

func TestRunAssignments(t *testing.T) {
	mux, run_id := testServer(t)

	rec := doGet(t, mux, "/runs/"+run_id+"/assignments")
	require.Equal(t, http.StatusOK, rec.Code)

	var assignments map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&assignments))
	assert.Equal(t, map[string]string{
		"s1": "r0", "s2": "r0", "s3": "r1", "s4": "r1",
	}, assignments)
}

func TestRunAssignmentsNotFound(t *testing.T) {
	mux, _ := testServer(t)

	rec := doGet(t, mux, "/runs/nonexistent/assignments")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
