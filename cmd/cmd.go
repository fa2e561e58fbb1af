package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"stormlightlabs.org/propline/internal/config"
	"stormlightlabs.org/propline/internal/db"
	"stormlightlabs.org/propline/internal/echo"
	"stormlightlabs.org/propline/internal/ingest"
	"stormlightlabs.org/propline/internal/logging"
	"stormlightlabs.org/propline/internal/repository"
)

// IngestOnceCmd creates the ingest-once command
func IngestOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest-once",
		Short: "Run a single IngestionEngine cycle and exit",
		Long:  "Runs one ingestion pass across all active leagues and exits. Exit code is 0 if any league succeeded, 1 if every league failed.",
		RunE:  ingestOnce,
	}
}

// StoreStatsCmd creates the store-stats command
func StoreStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "store-stats",
		Short: "Print projection store statistics as JSON",
		Long:  "Connects to the database and prints ProjectionRepository.Stats() as JSON.",
		RunE:  storeStats,
	}
}

func buildIngestEngine(cmd *cobra.Command) (*ingest.Engine, *db.DB, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error: failed to load config: %w", err)
	}

	database, err := db.Connect(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("error: %w", err)
	}

	logger := log.NewWithOptions(cmd.OutOrStdout(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "📈",
	})

	projectionRepo := repository.NewProjectionRepository(database.DB, nil)
	leagueRepo := repository.NewLeagueRepository(database.DB)

	backoffSteps := make([]time.Duration, 0, len(cfg.Ingest.BackoffScheduleSeconds))
	for _, s := range cfg.Ingest.BackoffScheduleSeconds {
		backoffSteps = append(backoffSteps, time.Duration(s)*time.Second)
	}

	fetcher := ingest.NewHTTPFetcher(15*time.Second, logging.Component(logger, "ingest.fetcher"))
	responseCache := ingest.NewResponseCache(time.Duration(cfg.Ingest.ResponseCacheTTLSeconds) * time.Second)
	governor := ingest.NewRateGovernor(time.Duration(cfg.Ingest.RequestMinSpacingSeconds)*time.Second, backoffSteps)
	engine := ingest.NewEngine(fetcher, responseCache, governor, projectionRepo, leagueRepo, time.Duration(cfg.Ingest.IntervalSeconds)*time.Second, logging.Component(logger, "ingest.engine"))

	return engine, database, nil
}

func ingestOnce(cmd *cobra.Command, args []string) error {
	echo.Header("Ingestion Cycle")
	echo.Info("Connecting to database...")

	engine, database, err := buildIngestEngine(cmd)
	if err != nil {
		return err
	}
	defer database.Close()

	echo.Success("✓ Connected to database")
	echo.Info("Running one ingestion cycle...")

	ctx := cmd.Context()
	if err := engine.RunCycle(ctx); err != nil {
		return fmt.Errorf("error: %w", err)
	}

	state := engine.State()
	anyOk := false
	for _, league := range state.Leagues {
		status := "✓"
		if league.LastStatus != "ok" {
			status = "✗"
		} else {
			anyOk = true
		}
		echo.Infof("  %s %s (%s): %d projections, status=%s", status, league.LeagueName, league.LeagueID, league.Projections, league.LastStatus)
	}

	echo.Infof("Cycle took %s", formatLargeNumber(state.LastCycleDurationMs)+"ms")

	if !anyOk && len(state.Leagues) > 0 {
		echo.Error("✗ All leagues failed")
		os.Exit(1)
	}

	echo.Success("✓ Ingestion cycle completed")
	return nil
}

func storeStats(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error: failed to load config: %w", err)
	}

	database, err := db.Connect(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	defer database.Close()

	projectionRepo := repository.NewProjectionRepository(database.DB, nil)

	stats, err := projectionRepo.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}

	encoded, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("error: failed to encode stats: %w", err)
	}

	fmt.Println(string(encoded))
	return nil
}
