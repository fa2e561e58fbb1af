package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"stormlightlabs.org/propline/internal/api"
	"stormlightlabs.org/propline/internal/cache"
	"stormlightlabs.org/propline/internal/config"
	"stormlightlabs.org/propline/internal/db"
	"stormlightlabs.org/propline/internal/echo"
	"stormlightlabs.org/propline/internal/logging"
	"stormlightlabs.org/propline/internal/middleware"
	"stormlightlabs.org/propline/internal/supervisor"
)

const defaultFetchBaseURL string = "http://localhost:8000/"

// ServerCmd creates the server command group
func ServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Server operations",
		Long:  "Start and manage the PropLine API server.",
	}

	cmd.AddCommand(ServerStartCmd())
	cmd.AddCommand(ServerFetchCmd())
	cmd.AddCommand(ServerHealthCmd())
	return cmd
}

// ServerStartCmd creates the start command
func ServerStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the API server",
		Long:  "Start the PropLine API HTTP server, ingestion loop, scorer training, and LLM discovery.",
		RunE:  startServer,
	}

	cmd.Flags().Bool("debug", false, "Enable debug mode (verbose logging, no rate limiting)")
	return cmd
}

// ServerFetchCmd creates the server fetch command
func ServerFetchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch [path]",
		Short: "Test API endpoints",
		Long: `cURL-like tool for testing API endpoints with formatted output.

Path should be relative to the server base URL (e.g., 'api/prizepicks/projections?league_id=7').`,
		Args: cobra.ExactArgs(1),
		RunE: fetchEndpoint,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format (json|table)")
	cmd.Flags().BoolP("raw", "r", false, "Output raw JSON without colors or formatting (suitable for piping to jq)")
	return cmd
}

// ServerHealthCmd creates the health command
func ServerHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		Long:  "Perform health check on the running API server.",
		RunE:  checkHealth,
	}
}

func fetchEndpoint(cmd *cobra.Command, args []string) error {
	path := args[0]
	format, _ := cmd.Flags().GetString("format")
	raw, _ := cmd.Flags().GetBool("raw")

	url := defaultFetchBaseURL + path

	if !raw {
		echo.Header("API Test")
		echo.Infof("Fetching: %s", url)
		echo.Info("")
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return fmt.Errorf("error: failed to create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	defer resp.Body.Close()

	if !raw {
		echo.Infof("Status: %s", resp.Status)
		echo.Info("")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error: failed to read response: %w", err)
	}

	if raw {
		var prettyJSON bytes.Buffer
		if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
			fmt.Println(string(body))
		} else {
			fmt.Println(prettyJSON.String())
		}
		return nil
	}

	if format == "table" {
		echo.Info("Table format not yet implemented, showing JSON:")
		echo.Info("")
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
		echo.Info(string(body))
	} else {
		echo.Info(prettyJSON.String())
	}

	echo.Info("")
	echo.Successf("✓ Request completed (%d bytes)", len(body))
	return nil
}

func checkHealth(cmd *cobra.Command, args []string) error {
	echo.Header("Health Check")

	serverURL := defaultFetchBaseURL + "health"
	echo.Infof("Checking: %s", serverURL)
	echo.Info("")

	resp, err := http.Get(serverURL)
	if err != nil {
		return fmt.Errorf("error: server is not running or unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		echo.Successf("✓ Server is healthy (Status: %s)", resp.Status)

		body, err := io.ReadAll(resp.Body)
		if err == nil && len(body) > 0 {
			var prettyJSON bytes.Buffer
			if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
				echo.Info("")
				echo.Info(prettyJSON.String())
			}
		}
		return nil
	}

	return fmt.Errorf("error: server returned status: %s", resp.Status)
}

func startServer(cmd *cobra.Command, args []string) error {
	echo.Header("Starting Server")
	echo.Info("Loading configuration...")

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("error: failed to load config: %w", err)
	}

	debugMode, _ := cmd.Flags().GetBool("debug")
	if debugMode {
		cfg.Server.DebugMode = true
	}

	if cfg.Server.DebugMode {
		echo.Info("⚠ Debug mode enabled - verbose logging")
	}

	echo.Info("Connecting to database...")
	database, err := db.Connect(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	defer database.Close()

	echo.Success("✓ Connected to database")
	echo.Info("Connecting to Redis...")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("error: failed to parse Redis URL: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	var cacheClient *cache.Client
	if _, err := redisClient.Ping(cmd.Context()).Result(); err != nil {
		echo.Infof("⚠ Redis connection failed: %v", err)
		echo.Info("  Projection reads will bypass the cache")
		redisClient = nil
	} else {
		echo.Success("✓ Connected to Redis")
		cacheClient = cache.NewClient(redisClient, cache.Config{
			App:     "propline",
			Env:     "dev",
			Version: cfg.Cache.Version,
			Enabled: cfg.Cache.Enabled,
			TTLs: cache.TTLConfig{
				Entity:     time.Duration(cfg.Cache.TTLs.Entity) * time.Second,
				List:       time.Duration(cfg.Cache.TTLs.List) * time.Second,
				Search:     time.Duration(cfg.Cache.TTLs.Search) * time.Second,
				Prediction: time.Duration(cfg.Cache.TTLs.Prediction) * time.Second,
				Negative:   time.Duration(cfg.Cache.TTLs.Negative) * time.Second,
			},
		})
	}

	timeFmt := time.DateTime
	if cfg.Server.DebugMode {
		timeFmt = time.Kitchen
	}

	logger := log.NewWithOptions(cmd.OutOrStdout(), log.Options{
		ReportTimestamp: true,
		TimeFormat:      timeFmt,
		Prefix:          "📈",
		ReportCaller:    cfg.Server.DebugMode,
	})

	sup := supervisor.New(cfg.Server.PortRangeStart, cfg.Server.PortRangeEnd, 10*time.Second, logging.Component(logger, "supervisor"))

	server := api.NewServer(cfg, database.DB, cacheClient, sup, logger)

	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.Server.DebugMode, 300, 60, time.Minute)

	var handler http.Handler = server
	bind := middleware.Logger(logging.Component(logger, "http"))
	handler = bind(handler)

	if !cfg.Server.DebugMode && redisClient != nil {
		handler = rateLimiter.Middleware(handler)
		echo.Info("✓ Rate limiting enabled (60 req/min per IP)")
	} else if cfg.Server.DebugMode {
		echo.Info("⚠ Rate limiting disabled (debug mode)")
	} else {
		echo.Info("⚠ Rate limiting disabled (Redis unavailable)")
	}

	echo.Info("✓ Request logging enabled")
	echo.Infof("Binding to %s, ports %d-%d...", cfg.Server.Host, cfg.Server.PortRangeStart, cfg.Server.PortRangeEnd)
	echo.Info("Ingestion loop, scorer training, and LLM discovery start in the background")
	echo.Info("Press Ctrl+C to stop")
	echo.Info("")

	return sup.Run(cmd.Context(), cfg.Server.Host, handler, server.Tasks()...)
}
