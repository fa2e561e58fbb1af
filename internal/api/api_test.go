package api

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/charmbracelet/log"

	"stormlightlabs.org/propline/internal/db"
	"stormlightlabs.org/propline/internal/ensemble"
	"stormlightlabs.org/propline/internal/explain"
	"stormlightlabs.org/propline/internal/ingest"
	"stormlightlabs.org/propline/internal/repository"
	"stormlightlabs.org/propline/internal/supervisor"
	"stormlightlabs.org/propline/internal/testutils"
)

var (
	testDB             *sql.DB
	testProjectionRepo *repository.ProjectionRepository
	testLeagueRepo     *repository.LeagueRepository
	testEngine         *ingest.Engine
	testManager        *ensemble.Manager
	testExplainSvc     *explain.Service
	testSupervisor     *supervisor.Supervisor
	testCleanup        func()
)

func TestMain(m *testing.M) {
	ctx := context.Background()

	projectRoot, err := testutils.GetProjectRoot()
	if err != nil {
		panic("failed to get project root: " + err.Error())
	}

	originalDir, err := os.Getwd()
	if err != nil {
		panic("failed to get current directory: " + err.Error())
	}

	if err := os.Chdir(projectRoot); err != nil {
		panic("failed to change to project root: " + err.Error())
	}

	container, err := testutils.NewPostgresContainer(ctx)
	if err != nil {
		panic("failed to create postgres container: " + err.Error())
	}

	testCleanup = func() {
		os.Chdir(originalDir)
		if err := container.Terminate(ctx); err != nil {
			panic("failed to terminate container: " + err.Error())
		}
	}

	database, err := db.Connect(container.ConnStr)
	if err != nil {
		testCleanup()
		panic("failed to connect to database: " + err.Error())
	}

	if err := database.Migrate(ctx); err != nil {
		testCleanup()
		panic("failed to run migrations: " + err.Error())
	}

	if err := container.LoadProjectionFixtures(ctx); err != nil {
		testCleanup()
		panic("failed to load fixtures: " + err.Error())
	}

	testDB = database.DB
	testProjectionRepo = repository.NewProjectionRepository(testDB, nil)
	testLeagueRepo = repository.NewLeagueRepository(testDB)

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "test"})

	fetcher := ingest.NewHTTPFetcher(5*time.Second, logger)
	responseCache := ingest.NewResponseCache(time.Minute)
	governor := ingest.NewRateGovernor(time.Second, []time.Duration{time.Second, 2 * time.Second})
	testEngine = ingest.NewEngine(fetcher, responseCache, governor, testProjectionRepo, testLeagueRepo, time.Minute, logger)

	manager, err := ensemble.NewManager(logger)
	if err != nil {
		testCleanup()
		panic("failed to build ensemble manager: " + err.Error())
	}
	testManager = manager

	testExplainSvc = explain.NewService(explain.NewOllamaClient("http://127.0.0.1:0", time.Second), nil, logger)
	testSupervisor = supervisor.New(8000, 8010, 10*time.Second, logger)

	code := m.Run()

	testManager.Close()
	testCleanup()

	os.Exit(code)
}
