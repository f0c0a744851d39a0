package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/dpeerlab/picasso/logger"
	ppdb "github.com/dpeerlab/picasso/pkg/db"
)

// RunSummary is the JSON payload for a single run, the stored record plus
// its terminal clones.
type RunSummary struct {
	Run    *ppdb.RunRecord     `json:"run"`
	Clones []*ppdb.CloneRecord `json:"clones"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// ListRunsHandler returns all stored run summaries.
func (ctx *StoreContext) ListRunsHandler(w http.ResponseWriter, r *http.Request) {

	runs, err := ctx.Store.ListRuns(r.Context())
	if err != nil {
		logger.Error("Listing runs failed", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, runs)
}

// RunPage returns one run with its terminal clones.
func (ctx *StoreContext) RunPage(w http.ResponseWriter, r *http.Request) {

	run_id := r.PathValue("run_id")

	run, err := ctx.Store.GetRun(r.Context(), run_id)
	if errors.Is(err, ppdb.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Fetching run failed", zap.String("run_id", run_id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	clones, err := ctx.Store.GetClones(r.Context(), run_id)
	if err != nil {
		logger.Error("Fetching clones failed", zap.String("run_id", run_id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, RunSummary{Run: run, Clones: clones})
}

// RunTreeHandler returns the phylogeny of a run as newick text.
func (ctx *StoreContext) RunTreeHandler(w http.ResponseWriter, r *http.Request) {

	run_id := r.PathValue("run_id")

	run, err := ctx.Store.GetRun(r.Context(), run_id)
	if errors.Is(err, ppdb.ErrRunNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Fetching run failed", zap.String("run_id", run_id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, run.Newick)
}

// RunAssignmentsHandler returns the sample-to-clone table of a run.
func (ctx *StoreContext) RunAssignmentsHandler(w http.ResponseWriter, r *http.Request) {

	run_id := r.PathValue("run_id")

	// Distinguish a missing run from a run with no assignments.
	if _, err := ctx.Store.GetRun(r.Context(), run_id); err != nil {
		if errors.Is(err, ppdb.ErrRunNotFound) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		logger.Error("Fetching run failed", zap.String("run_id", run_id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	assignments, err := ctx.Store.GetAssignments(r.Context(), run_id)
	if err != nil {
		logger.Error("Fetching assignments failed", zap.String("run_id", run_id), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, assignments)
}
