// Package api provides HTTP handlers for the PropLine API.
//
// @title PropLine API
// @description.markdown
// @version 1.0
// @BasePath /
//
// @contact.name API Support
// @contact.url https://github.com/stormlightlabs/propline
// @contact.email info@stormlightlabs.org
//
// @license.name MPL-2.0
// @license.url https://opensource.org/license/mpl-2-0
//
// @tag.name health
// @tag.description Process and subsystem health
//
// @tag.name status
// @tag.description Scorer and ingestion lifecycle state
//
// @tag.name projections
// @tag.description PrizePicks projection reads
//
// @tag.name predictions
// @tag.description Ensemble-ranked predictions
//
// @tag.name propollama
// @tag.description Chat-style explanation assistant
package api

import (
	"context"
	"database/sql"
	_ "expvar"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	httpSwagger "github.com/swaggo/http-swagger"

	"stormlightlabs.org/propline/internal/cache"
	"stormlightlabs.org/propline/internal/config"
	"stormlightlabs.org/propline/internal/core"
	docs "stormlightlabs.org/propline/internal/docs"
	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/explain"
	"stormlightlabs.org/propline/internal/ingest"
	"stormlightlabs.org/propline/internal/logging"
	"stormlightlabs.org/propline/internal/repository"
	"stormlightlabs.org/propline/internal/supervisor"
)

// Server is the HTTP handler plus the background tasks its routes depend on
// (IngestionEngine's cycle loop, scorer training, LLM model discovery).
// Supervisor launches Tasks() alongside the listener without blocking it.
type Server struct {
	mux   *http.ServeMux
	tasks []supervisor.BackgroundTask
}

// NewServer wires the durable store, ingestion pipeline, ensemble manager,
// and explanation service into one mux. db and cacheClient must already be
// connected; cacheClient may be nil if Redis is unavailable, in which case
// routes fall back to uncached reads.
func NewServer(cfg *config.Config, db *sql.DB, cacheClient *cache.Client, sup *supervisor.Supervisor, logger *log.Logger) *Server {
	projectionRepo := repository.NewProjectionRepository(db, cacheClient)
	leagueRepo := repository.NewLeagueRepository(db)

	backoffSteps := make([]time.Duration, 0, len(cfg.Ingest.BackoffScheduleSeconds))
	for _, s := range cfg.Ingest.BackoffScheduleSeconds {
		backoffSteps = append(backoffSteps, time.Duration(s)*time.Second)
	}

	fetcher := ingest.NewHTTPFetcher(15*time.Second, logging.Component(logger, "ingest.fetcher"))
	responseCache := ingest.NewResponseCache(time.Duration(cfg.Ingest.ResponseCacheTTLSeconds) * time.Second)
	governor := ingest.NewRateGovernor(time.Duration(cfg.Ingest.RequestMinSpacingSeconds)*time.Second, backoffSteps)
	engine := ingest.NewEngine(fetcher, responseCache, governor, projectionRepo, leagueRepo, time.Duration(cfg.Ingest.IntervalSeconds)*time.Second, logging.Component(logger, "ingest.engine"))

	manager, err := ensemble.NewManager(logging.Component(logger, "ensemble"))
	if err != nil {
		logger.Fatal("failed to build ensemble manager", "err", err)
	}
	scorers := buildScorers()
	trainingTasks := make([]supervisor.BackgroundTask, 0, len(scorers))
	for _, s := range scorers {
		manager.Register(s)
		trainingTasks = append(trainingTasks, trainerTask(s))
	}

	llmClient := explain.NewOllamaClient(cfg.LLM.URL, 60*time.Second)
	explainSvc := explain.NewService(llmClient, cfg.LLM.ModelPreference, logging.Component(logger, "explain"))

	tasks := []supervisor.BackgroundTask{
		engine.Run,
		func(ctx context.Context) { explainSvc.Discover(ctx) },
	}
	tasks = append(tasks, trainingTasks...)

	return newServer(
		tasks,
		NewHealthRoutes(engine, manager, explainSvc, sup),
		NewStatusRoutes(manager, engine),
		NewProjectionRoutes(projectionRepo, engine, time.Duration(cfg.Ingest.StaleThresholdSeconds)*time.Second),
		NewPredictionRoutes(projectionRepo, manager, cfg.Ensemble.MinReadyScorers),
		NewPropOllamaRoutes(projectionRepo, manager, explainSvc),
	)
}

// trainableScorer is satisfied by the built-in scorers, whose background
// warmup is launched as a Supervisor task rather than at construction time.
type trainableScorer interface {
	Train(ctx context.Context)
}

func trainerTask(s core.Scorer) supervisor.BackgroundTask {
	trainable, ok := s.(trainableScorer)
	if !ok {
		return func(ctx context.Context) {}
	}
	return trainable.Train
}

func buildScorers() []core.Scorer {
	statBaselines := map[string]float64{
		"points":        22.5,
		"rebounds":      7.5,
		"assists":       5.5,
		"strikeouts":    5.5,
		"passing_yards": 235,
		"rushing_yards": 65,
	}

	return []core.Scorer{
		ensemble.NewRollingAverageScorer("rolling_average_v1", statBaselines, 2*time.Second),
		ensemble.NewMomentumScorer("line_momentum_v1", statBaselines, 2*time.Second),
	}
}

// newServer wires registrars and ambient routes into one mux.
func newServer(tasks []supervisor.BackgroundTask, registrars ...Registrar) *Server {
	docs.SwaggerInfo.BasePath = "/"

	mux := http.NewServeMux()

	for _, r := range registrars {
		r.RegisterRoutes(mux)
	}

	mux.HandleFunc("/docs/", httpSwagger.WrapHandler)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusMovedPermanently)
	})

	mux.Handle("GET /debug/vars", http.DefaultServeMux)

	return &Server{mux: mux, tasks: tasks}
}

// Tasks returns the background tasks (IngestionEngine loop, scorer training,
// LLM discovery) that Supervisor must launch alongside the listener.
func (s *Server) Tasks() []supervisor.BackgroundTask {
	return s.tasks
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
