package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"path"

	"github.com/joho/godotenv"

	"github.com/dpeerlab/picasso/internal/util"
	"github.com/dpeerlab/picasso/logger"
	ppdb "github.com/dpeerlab/picasso/pkg/db"
	"github.com/dpeerlab/picasso/pkg/handler"
	"github.com/dpeerlab/picasso/pkg/matrix"
	"github.com/dpeerlab/picasso/pkg/middle"
	"github.com/dpeerlab/picasso/pkg/model"
	"github.com/dpeerlab/picasso/pkg/render"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"
)

var (
	picasso_data string
)

func main() {

	// Establish logger
	VERSION := "0.1.0"
	LOG_LEVEL := zapcore.InfoLevel
	if os.Getenv("PICASSO_DEBUG") == "1" {
		LOG_LEVEL = zapcore.DebugLevel
	}

	if err := logger.InitLogger(LOG_LEVEL); err != nil {
		panic(err)
	}

	// Try load env
	dotenvErr := godotenv.Load()

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	defer logger.Sync() // Make sure that the buffered is flushed.

	picasso_data = os.Getenv("PICASSO_DATA")

	if picasso_data == "" {
		logger.Warn("No local environment (PICASSO_DATA), using default value (./data)")
		picasso_data = "./data"
	}

	picasso_sqlite := path.Join(picasso_data, "db/picasso_runs.db")
	if err := os.MkdirAll(path.Dir(picasso_sqlite), 0755); err != nil {
		logger.Fatal("Cannot create data directory", zap.Error(err))
	}

	// Connect to db
	db, _ := sql.Open("sqlite", picasso_sqlite)
	store := ppdb.NewRunStore(db)

	if err := store.Init(context.Background()); err != nil {
		logger.Fatal("Cannot initialize run store", zap.Error(err))
	}

	logger.Info("Start:", zap.String("Version", VERSION))
	logger.Info("Open database on", zap.String("DB_LOC", picasso_sqlite))

	input := os.Getenv("PICASSO_INPUT")
	serve := os.Getenv("PICASSO_SERVE") == "1"

	if input == "" && !serve {
		logger.Fatal("Nothing to do: set PICASSO_INPUT to reconstruct, PICASSO_SERVE=1 to serve stored runs")
	}

	if input != "" {
		runReconstruction(store, input)
	}

	if serve {
		sctx := &handler.StoreContext{Store: store}
		mux := NewRouter(sctx)

		// Apply middleware
		m := middle.LoggingMiddleware(middle.CreateMiddlewareLogger(LOG_LEVEL))
		wrapped := middle.RequestIDMiddleware()(m(mux))

		logger.Info("Server starting on :8080...")
		httpErr := http.ListenAndServe("0.0.0.0:8080", wrapped)
		if httpErr != nil {
			logger.Error("Error starting server:", zap.String("error message", httpErr.Error()))
		}
	}
}

// configFromEnv assembles the reconstruction configuration from PICASSO_*
// environment variables, falling back to defaults.
func configFromEnv() model.Config {

	cfg := model.DefaultConfig()
	cfg.MinDepth = util.EnvIntOr("PICASSO_MIN_DEPTH", cfg.MinDepth)
	cfg.MaxDepth = util.EnvIntOr("PICASSO_MAX_DEPTH", cfg.MaxDepth)
	cfg.MinCloneSize = util.EnvIntOr("PICASSO_MIN_CLONE_SIZE", cfg.MinCloneSize)
	cfg.ConfidenceThreshold = util.EnvFloatOr("PICASSO_ASSIGNMENT_CONFIDENCE_THRESHOLD", cfg.ConfidenceThreshold)
	cfg.ConfidenceProportion = util.EnvFloatOr("PICASSO_ASSIGNMENT_CONFIDENCE_PROPORTION", cfg.ConfidenceProportion)
	cfg.BICPenalty = util.EnvFloatOr("PICASSO_BIC_PENALTY_STRENGTH", cfg.BICPenalty)
	cfg.Seed = int64(util.EnvIntOr("PICASSO_SEED", int(cfg.Seed)))
	cfg.Workers = util.EnvIntOr("PICASSO_WORKERS", cfg.Workers)

	if tb := os.Getenv("PICASSO_TERMINATE_BY"); tb != "" {
		crit, err := model.ParseCriterion(tb)
		if err != nil {
			logger.Fatal("Bad configuration", zap.Error(err))
		}
		cfg.TerminateBy = crit
	}

	return cfg
}

func runReconstruction(store *ppdb.RunStore, input string) {

	cfg := configFromEnv()

	mat, err := matrix.Load(input)
	if err != nil {
		logger.Fatal("Cannot load copy-number matrix", zap.String("input", input), zap.Error(err))
	}

	logger.Info("Loaded matrix",
		zap.String("input", input),
		zap.Int("samples", mat.NSamples()),
		zap.Int("features", mat.NFeatures()),
		zap.Int("states", mat.NStates()))

	splitter, err := model.NewSplitter(cfg, mat)
	if err != nil {
		logger.Fatal("Bad configuration", zap.Error(err))
	}

	res, err := splitter.Run()
	if err != nil {
		logger.Fatal("Reconstruction failed", zap.Error(err))
	}

	run_id, err := store.SaveRun(context.Background(), cfg, mat, res)
	if err != nil {
		logger.Fatal("Cannot persist run", zap.Error(err))
	}

	out_dir := util.EnvOr("PICASSO_OUTPUT", path.Join(picasso_data, "results", run_id))
	if err := render.ExportRun(out_dir, mat, res); err != nil {
		logger.Fatal("Cannot export run", zap.Error(err))
	}

	logger.Info("Run complete",
		zap.String("run_id", run_id),
		zap.Int("terminal_clones", len(res.Terminal)),
		zap.String("output", out_dir))
}

// Move to router.go in the next iteration
func NewRouter(sctx *handler.StoreContext) *http.ServeMux {
	mux := http.NewServeMux()

	// Error route
	mux.HandleFunc("GET /favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	// API routes
	mux.HandleFunc("GET /api/v1/health", handler.HealthCheck)
	mux.HandleFunc("GET /runs", sctx.ListRunsHandler)
	mux.HandleFunc("GET /runs/{run_id}", sctx.RunPage)
	mux.HandleFunc("GET /runs/{run_id}/tree", sctx.RunTreeHandler)
	mux.HandleFunc("GET /runs/{run_id}/assignments", sctx.RunAssignmentsHandler)

	return mux
}
