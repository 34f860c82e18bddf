package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slotwise/slotwise/internal/classify"
	"github.com/slotwise/slotwise/internal/instrumentation"
	"github.com/slotwise/slotwise/internal/server"
	"github.com/slotwise/slotwise/internal/store"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		httpAddr       string
		dbPath         string
		geminiAPIKey   string
		geminiModel    string
		calendarIDs    []string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server of the scheduling assistant.

The server exposes:
  - The Google OAuth consent flow under /auth/google and /auth/callback
  - Inbox listing and meeting intent classification under /api/emails
  - Free slot suggestion under /api/slots
  - Slot booking (with optional confirmation reply) under /api/schedule

Classification requires a Gemini API key via --gemini-api-key or the
GEMINI_API_KEY env var; without one the classify endpoint is disabled.

Tokens and processed messages are persisted in the SQLite database
given by --db. Without it, tokens are read from the file cache of the
auth command.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if geminiAPIKey == "" {
				geminiAPIKey = os.Getenv("GEMINI_API_KEY")
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}
			if addr := os.Getenv("METRICS_ADDR"); addr != "" && metricsAddr == server.DefaultMetricsAddr {
				metricsConfig.Addr = addr
			}

			return runServe(debugMode, httpAddr, dbPath, geminiAPIKey, geminiModel, calendarIDs, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&httpAddr, "http-addr", server.DefaultAddr, "HTTP server address")
	cmd.Flags().StringVar(&dbPath, "db", "", "Path to the SQLite database for tokens and message history")
	cmd.Flags().StringVar(&geminiAPIKey, "gemini-api-key", "", "Gemini API key for meeting intent classification. Can also use GEMINI_API_KEY env var.")
	cmd.Flags().StringVar(&geminiModel, "gemini-model", "", "Gemini model to use for classification (default: gemini-2.5-flash)")
	cmd.Flags().StringSliceVar(&calendarIDs, "calendar", nil, "Calendar IDs to consult for busy times (default: primary)")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(debugMode bool, httpAddr, dbPath, geminiAPIKey, geminiModel string, calendarIDs []string, metricsConfig MetricsConfig) error {
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Error("error during instrumentation shutdown", "error", err)
		}
	}()

	// Start metrics server if the prometheus exporter is active
	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.PrometheusEnabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	var st *store.Store
	if dbPath != "" {
		st, err = store.New(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()

		if accounts, err := st.ListAccounts(shutdownCtx); err == nil {
			slog.Info("store opened", "path", dbPath, "accounts", len(accounts))
		}
	}

	var classifier *classify.Classifier
	if geminiAPIKey != "" {
		var opts []classify.Option
		if geminiModel != "" {
			opts = append(opts, classify.WithModel(geminiModel))
		}
		classifier, err = classify.NewClassifier(geminiAPIKey, opts...)
		if err != nil {
			return fmt.Errorf("failed to create classifier: %w", err)
		}
	} else {
		slog.Warn("no Gemini API key configured, classification endpoint disabled")
	}

	serverContext := server.NewServerContext(shutdownCtx, st, classifier)
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			slog.Error("error during server context shutdown", "error", err)
		}
	}()

	apiServer := server.NewServer(server.Config{
		Addr:        httpAddr,
		CalendarIDs: calendarIDs,
		Metrics:     provider.Metrics(),
	}, serverContext)

	serverErr := make(chan error, 1)
	go func() {
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
	case <-shutdownCtx.Done():
		slog.Info("shutdown signal received")
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer drainCancel()

	if err := apiServer.Shutdown(drainCtx); err != nil {
		slog.Error("error during API server shutdown", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(drainCtx); err != nil {
			slog.Error("error during metrics server shutdown", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}
