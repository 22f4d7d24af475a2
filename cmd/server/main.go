/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the tracking engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read flags and TRACKING_* environment variables
  2. Register built-in schemas, then schema documents from --schemas
  3. Initialize SQLite store and apply stored schema overrides
  4. Create API handler, router and alert scheduler
  5. Start server with graceful shutdown

FLAGS (env TRACKING_<NAME>, dashes become underscores):
  --port            HTTP server port (default: 8080)
  --db              SQLite database path (default: tracking.db)
                    Use ":memory:" for in-memory database
  --schemas         Directory of schema override documents (.json/.jsonc/.yaml)
  --sweep-interval  Alert sweep interval (default: 1h)
  --sweep-enabled   Run the alert sweep scheduler (default: true)
  --cors-origins    Allowed CORS origins (comma separated)
  --verbose         Debug logging

SCHEMA PRECEDENCE:
  built-in < --schemas directory < overrides stored via PUT /api/entities

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the alert scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server --db ./data/tracking.db

  # Run with in-memory database and custom schemas
  TRACKING_DB=":memory:" ./server --schemas ./schemas

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/sysmayal/tracking-engine/api"
	"github.com/sysmayal/tracking-engine/factory"
	"github.com/sysmayal/tracking-engine/generic"
	"github.com/sysmayal/tracking-engine/store/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	// Built-in entity schemas
	_ "github.com/sysmayal/tracking-engine/compliance"
	_ "github.com/sysmayal/tracking-engine/organization"
	_ "github.com/sysmayal/tracking-engine/research"
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Tracking engine HTTP server",
	Long: `Serves the tracking engine: stateless derivation, stored records whose
edits are derived and audited, periodic expiry/review/audit alert sweeps,
and dashboard reports.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addFlags()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TRACKING")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addFlags() {
	flags := rootCmd.Flags()
	flags.Int("port", 8080, "HTTP server port")
	flags.String("db", "tracking.db", "SQLite database path")
	flags.String("schemas", "", "directory of schema override documents")
	flags.Duration("sweep-interval", time.Hour, "alert sweep interval")
	flags.Bool("sweep-enabled", true, "run the alert sweep scheduler")
	flags.StringSlice("cors-origins", api.DefaultAllowedOrigins, "allowed CORS origins")
	flags.BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"port", "db", "schemas", "sweep-interval", "sweep-enabled", "cors-origins", "verbose"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func run(ctx context.Context) error {
	logger, err := newLogger(viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer logger.Sync()

	registry := generic.DefaultRegistry

	// Schema documents from disk replace the built-in tables
	if dir := viper.GetString("schemas"); dir != "" {
		sf := factory.NewSchemaFactory()
		schemas, err := sf.LoadDir(dir)
		if err != nil {
			return err
		}
		if err := sf.Apply(registry, schemas); err != nil {
			return err
		}
		logger.Info("schema documents loaded", zap.String("dir", dir), zap.Int("count", len(schemas)))
	}

	// Initialize store
	store, err := sqlite.New(viper.GetString("db"), sqlite.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	if _, err := store.LoadSchemas(context.Background(), registry); err != nil {
		logger.Warn("failed to load stored schema overrides", zap.Error(err))
	}

	// Initialize handler
	handler := api.NewHandler(store, registry, logger)
	handler.Schemas = store

	scheduler := api.NewAlertScheduler(store, handler.Engine, logger)
	scheduler.CheckInterval = viper.GetDuration("sweep-interval")
	scheduler.Enabled = viper.GetBool("sweep-enabled")
	handler.Scheduler = scheduler

	router := api.NewRouter(handler, viper.GetStringSlice("cors-origins")...)

	port := viper.GetInt("port")
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.Int("port", port),
			zap.Strings("entity_types", entityTypeNames(registry)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		scheduler.Stop()
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func entityTypeNames(registry *generic.Registry) []string {
	types := registry.EntityTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
