package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/handlers"
	"zendesk-feedback-monitor/internal/interfaces"
	"zendesk-feedback-monitor/internal/services"
)

const serviceName = "zendesk-feedback-monitor"

func main() {
	var (
		configPath     = flag.String("config", "", "Path to configuration file")
		mode           = flag.String("mode", "dev", "Environment mode: 'dev', 'development', 'prod', or 'production'")
		quiet          = flag.Bool("quiet", false, "Suppress banner output")
		version        = flag.Bool("version", false, "Show version information")
		help           = flag.Bool("help", false, "Show help message")
		validateConfig = flag.Bool("validate", false, "Validate configuration file and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("%s v%s (commit: %s)\n", serviceName, common.GetFullVersion(), common.GetGitCommit())
		os.Exit(0)
	}

	if *help {
		showHelp()
		os.Exit(0)
	}

	environment := parseMode(*mode)

	// defaults -> TOML -> environment
	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg.Environment = environment

	if *validateConfig {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if err := common.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger := common.GetLogger()

	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", environment).
		Msg("Starting Zendesk feedback monitor")

	if !*quiet {
		common.PrintBanner(cfg, common.GetLogFilePath())
		if cfg.Zendesk.Credentials == common.CredentialsStartup && !cfg.HasStartupCredentials() {
			common.PrintWarning("No Zendesk credentials configured; scheduled refreshes will be skipped")
		}
	}

	history, err := services.NewHistoryStorage(&cfg.Storage, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open run history")
		os.Exit(1)
	}
	defer history.Close()

	if _, err := services.PruneExpiredRuns(history, &cfg.Storage, time.Now(), logger); err != nil {
		logger.Warn().Err(err).Msg("Failed to prune expired run history")
	}

	if err := run(cfg, history, logger); err != nil {
		logger.Error().Err(err).Msg("Service stopped with error")
	}

	if !*quiet {
		common.PrintShutdownBanner(serviceName)
	}
	logger.Info().Msg("Zendesk feedback monitor shutdown complete")
}

func run(cfg *common.Config, history interfaces.HistoryStore, logger arbor.ILogger) error {
	client := services.NewZendeskClient(&cfg.Zendesk, logger)
	if cfg.CircuitBreaker.Enabled {
		client = services.NewCircuitBreakerClient(client, &cfg.CircuitBreaker, logger)
	}

	store := services.NewSnapshotStore()
	credentials := services.NewCredentialSource(cfg)
	wsHub := handlers.NewWebSocketHub(logger)

	monitor := services.NewMonitor(cfg, client, store, credentials, history, wsHub, logger)

	scheduler := services.NewScheduler(&cfg.Scheduler, func(ctx context.Context) {
		// failures are logged and recorded by the monitor
		_, _ = monitor.Refresh(ctx)
	}, logger)

	apiHandlers := handlers.NewAPIHandlers(cfg, monitor, store, scheduler, credentials, history, logger)

	webServer, err := services.NewWebServer(cfg, apiHandlers, wsHub, logger)
	if err != nil {
		return err
	}

	supervisor := services.NewSupervisor(logger)
	supervisor.Add(wsHub)
	supervisor.Add(scheduler)
	supervisor.Add(webServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Int("port", cfg.Server.Port).
		Str("credentials", credentials.Mode()).
		Msg("Server running - press Ctrl+C to stop")

	err = supervisor.Serve(ctx)

	// relays write run history, which main closes after run returns
	if !apiHandlers.WaitForRelays(relayDrainTimeout(cfg)) {
		logger.Warn().Msg("Relays still in flight at shutdown, their history may be lost")
	}

	if ctx.Err() != nil {
		logger.Info().Msg("Shutdown signal received")
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn().Err(err).Msg("Supervisor stopped uncleanly")
		}
		return nil
	}
	return err
}

// relayDrainTimeout covers one relay: two Zendesk calls and the Telex post.
func relayDrainTimeout(cfg *common.Config) time.Duration {
	timeout := time.Duration(2*cfg.Zendesk.TimeoutSeconds+cfg.Relay.TimeoutSeconds) * time.Second
	return max(timeout, 5*time.Second)
}

func parseMode(mode string) string {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return "production"
	default:
		return "development"
	}
}

func showHelp() {
	fmt.Printf("%s v%s - Zendesk to Telex feedback bridge\n\n", serviceName, common.GetVersion())
	fmt.Println("Usage:")
	fmt.Printf("  %s [flags]\n\n", os.Args[0])
	fmt.Println("Flags:")
	fmt.Println("  -mode string        Environment mode: 'dev', 'development', 'prod', or 'production' (default \"dev\")")
	fmt.Println("  -config string      Configuration file path")
	fmt.Println("  -quiet              Suppress banner output")
	fmt.Println("  -version            Show version information")
	fmt.Println("  -help               Show help message")
	fmt.Println("  -validate           Validate configuration file and exit")
	fmt.Println("\nEnvironment:")
	fmt.Println("  ZENDESK_URL, ZENDESK_EMAIL, ZENDESK_API_TOKEN   Startup credentials")
	fmt.Println("  ZENDESK_CREDENTIALS                             'startup' or 'trigger'")
	fmt.Println("  FETCH_INTERVAL_MINUTES, SERVER_PORT, PUBLIC_URL, DATABASE_PATH")
	fmt.Println("  LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT")
	fmt.Println("\nExamples:")
	fmt.Printf("  %s                                  # Run the monitor\n", os.Args[0])
	fmt.Printf("  %s -mode prod                       # Run in production mode\n", os.Args[0])
	fmt.Printf("  %s -config /path/to/config.toml     # Use custom config file\n", os.Args[0])
}
