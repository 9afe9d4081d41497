/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the leave management server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read configuration from the environment
  2. Initialize SQLite store
  3. Build the business calendar and leave service
  4. Configure HTTP router and provisioning scheduler
  5. Start server with graceful shutdown

CONFIGURATION (environment, prefix LEAVE_):
  LEAVE_PORT       HTTP server port (default: 8080)
  LEAVE_DB_PATH    SQLite database path (default: leave.db)
                   Use ":memory:" for an in-memory database
  LEAVE_TIMEZONE   IANA timezone for the business calendar
                   (default: Asia/Taipei)
  LEAVE_HOLIDAYS   Comma-separated YYYY-MM-DD holiday dates
  LEAVE_PROVISION  Enable the annual provisioning sweep (default: true)
  LEAVE_LOG_LEVEL  debug, info, warn, error (default: info)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the provisioning scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/5xRuby/daikichi-sub000/api"
	"github.com/5xRuby/daikichi-sub000/calendar"
	"github.com/5xRuby/daikichi-sub000/leave"
	"github.com/5xRuby/daikichi-sub000/store/sqlite"
)

// Config is read from the environment with the LEAVE_ prefix.
type Config struct {
	Port      int      `default:"8080"`
	DBPath    string   `split_words:"true" default:"leave.db"`
	Timezone  string   `default:"Asia/Taipei"`
	Holidays  []string `default:""`
	Provision bool     `default:"true"`
	LogLevel  string   `split_words:"true" default:"info"`
}

func main() {
	var cfg Config
	if err := envconfig.Process("leave", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone", slog.String("tz", cfg.Timezone), slog.Any("error", err))
		os.Exit(1)
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", slog.Any("error", err))
		os.Exit(1)
	}
	defer store.Close()

	cal := calendar.Default(loc)
	if len(cfg.Holidays) > 0 {
		holidays := make([]time.Time, 0, len(cfg.Holidays))
		for _, s := range cfg.Holidays {
			d, err := time.ParseInLocation("2006-01-02", s, loc)
			if err != nil {
				logger.Error("invalid holiday date", slog.String("date", s))
				os.Exit(1)
			}
			holidays = append(holidays, d)
		}
		cal = cal.WithHolidays(holidays...)
	}

	svc := leave.NewService(store, cal, logger)
	handler := api.NewHandler(svc, logger)
	router := api.NewRouter(handler)

	scheduler := api.NewProvisionScheduler(svc, logger)
	scheduler.Enabled = cfg.Provision
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			slog.Int("port", cfg.Port),
			slog.String("db", cfg.DBPath),
			slog.String("tz", cfg.Timezone))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
