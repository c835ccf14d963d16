// v3
// internal/app/app.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/gorilla/handlers"
	_ "github.com/lib/pq"

	"github.com/Endalebob/smart-home-telemetry/internal/analytics"
	"github.com/Endalebob/smart-home-telemetry/internal/api"
	"github.com/Endalebob/smart-home-telemetry/internal/cache"
	"github.com/Endalebob/smart-home-telemetry/internal/config"
	"github.com/Endalebob/smart-home-telemetry/internal/ingest"
	"github.com/Endalebob/smart-home-telemetry/internal/registry"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

// Application wires configuration, logging, storage, the analytics service,
// the HTTP server, and the optional Kafka consumer, and owns graceful
// shutdown for all of them.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	logFile  *os.File
	db       *sql.DB
	server   *http.Server
	health   *api.HealthState
	consumer *ingest.Consumer
}

// New prepares a fully wired service instance using the supplied
// configuration. Collaborators are chosen from the config: Postgres or the
// in-memory store, the HTTP device registry or the static fixture, and the
// Kafka consumer only when brokers are configured.
func New(cfg config.Config) (*Application, error) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return nil, errors.New("listen address cannot be empty")
	}
	logPath := filepath.Clean(cfg.LogFilePath)
	if logPath == "" {
		return nil, errors.New("log file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	lf, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger := newLogger(lf)

	app := &Application{cfg: cfg, logger: logger, logFile: lf, health: api.NewHealthState()}

	readings, err := app.buildStore()
	if err != nil {
		_ = lf.Close()
		return nil, err
	}
	reg, err := app.buildRegistry()
	if err != nil {
		_ = app.closeQuiet()
		return nil, err
	}

	results := cache.New(time.Now)
	svc := analytics.New(readings, reg, results, logger.With(slog.String("component", "analytics")), analytics.Config{
		CacheTTL:  cfg.CacheTTL,
		ClockSkew: cfg.ClockSkew,
		MaxLimit:  cfg.MaxLimit,
	})

	if len(cfg.KafkaBrokers) > 0 {
		consumer, err := ingest.NewConsumer(ingest.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.TelemetryTopic,
			GroupID: cfg.KafkaGroupID,
		}, svc, logger.With(slog.String("component", "kafka_consumer")))
		if err != nil {
			_ = app.closeQuiet()
			return nil, fmt.Errorf("kafka consumer init: %w", err)
		}
		app.consumer = consumer
	} else {
		logger.Info("kafka_consumer_disabled", slog.String("reason", "no brokers configured"))
	}

	h := api.NewHandlers(svc, logger.With(slog.String("component", "http")), api.HandlerConfig{
		RequestTimeout:       cfg.RequestTimeout,
		TopDefaultLimit:      cfg.TopDefaultLimit,
		ReadingsDefaultLimit: cfg.ReadingsDefaultLimit,
	})
	router := api.NewRouter(h, app.health, logger)

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-User-ID"}),
	)

	app.server = &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           cors(router),
		ReadTimeout:       cfg.HTTPReadTimeout,
		ReadHeaderTimeout: cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPWriteTimeout,
	}
	return app, nil
}

func (a *Application) buildStore() (store.ReadingStore, error) {
	if strings.TrimSpace(a.cfg.PostgresDSN) == "" {
		a.logger.Info("reading_store_selected", slog.String("kind", "memory"))
		return store.NewMemoryStore(time.Now, a.cfg.ClockSkew), nil
	}

	db, err := sql.Open("postgres", a.cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	a.db = db

	pg := store.NewPostgresStore(db, time.Now, a.cfg.ClockSkew)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	a.logger.Info("reading_store_selected", slog.String("kind", "postgres"))
	return pg, nil
}

func (a *Application) buildRegistry() (registry.Registry, error) {
	if base := strings.TrimSpace(a.cfg.RegistryBaseURL); base != "" {
		a.logger.Info("device_registry_selected",
			slog.String("kind", "http"),
			slog.String("base_url", base),
		)
		return registry.NewHTTPRegistry(base, a.cfg.RegistryTimeout, a.logger.With(slog.String("component", "registry"))), nil
	}
	if path := strings.TrimSpace(a.cfg.StaticDevicesPath); path != "" {
		reg, err := registry.LoadStaticFile(path)
		if err != nil {
			return nil, err
		}
		a.logger.Info("device_registry_selected",
			slog.String("kind", "static"),
			slog.String("fixture", path),
		)
		return reg, nil
	}
	a.logger.Warn("device_registry_empty", slog.String("hint", "set registry_base_url or static_devices_path"))
	return registry.NewStatic(nil), nil
}

// Logger exposes the configured slog logger so callers (such as main) can
// emit structured logs after initialization.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}

// Run blocks until the context is cancelled or a component terminates
// unexpectedly. It manages readiness and graceful shutdown.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpCh := make(chan error, 1)
	go func() {
		a.health.SetReady(true)
		a.logger.Info("http_server_listen", slog.String("address", a.cfg.ListenAddress))
		err := a.server.ListenAndServe()
		httpCh <- err
	}()

	var consumerCh chan error
	if a.consumer != nil {
		consumerCh = make(chan error, 1)
		go func() {
			consumerCh <- a.consumer.Run(ctx)
		}()
	}

	var httpErr, consumerErr error
	ctxDone := ctx.Done()
	for httpCh != nil || consumerCh != nil {
		select {
		case err := <-httpCh:
			httpCh = nil
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				httpErr = err
				a.logger.Error("http_server_error", slog.Any("err", err))
			} else {
				a.logger.Info("http_server_closed")
			}
			cancel()
		case err := <-consumerCh:
			consumerCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				consumerErr = err
				a.logger.Error("kafka_consumer_error", slog.Any("err", err))
			} else {
				a.logger.Info("kafka_consumer_stopped")
			}
			cancel()
		case <-ctxDone:
			ctxDone = nil
			a.health.SetReady(false)
			if httpCh != nil {
				a.shutdownHTTP()
			}
		}
	}

	if httpErr != nil {
		return httpErr
	}
	return consumerErr
}

func (a *Application) shutdownHTTP() {
	shutdownCtx, done := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer done()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http_shutdown_error", slog.Any("err", err))
		_ = a.server.Close()
	}
}

// Close releases the resources held by the application.
func (a *Application) Close() error {
	return a.closeQuiet()
}

func (a *Application) closeQuiet() error {
	var firstErr error
	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.logFile = nil
	}
	return firstErr
}

func newLogger(lf *os.File) *slog.Logger {
	var out io.Writer = os.Stdout
	if lf != nil {
		out = io.MultiWriter(os.Stdout, lf)
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
