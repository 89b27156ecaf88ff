// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/melaconv/internal/api"
	"github.com/starford/melaconv/internal/converter"
	"github.com/starford/melaconv/internal/ledger"
	"github.com/starford/melaconv/internal/mapper"
	"github.com/starford/melaconv/internal/sse"
	"github.com/starford/melaconv/internal/watch"
)

// NewLogger builds the process logger. Long-running modes log JSON; one-shot
// commands log text.
func NewLogger(w io.Writer, level slog.Level, jsonFormat bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Services holds the conversion components shared by every command.
type Services struct {
	Converter *converter.Converter
	// Ledger is nil when ledger.path is empty.
	Ledger ledger.RunStore
}

// NewServices opens the ledger (if configured) and builds a converter from
// cfg. extra options are applied last. The caller must Close the result.
func NewServices(cfg *Config, logger *slog.Logger, extra ...converter.Option) (*Services, error) {
	loc, err := cfg.Convert.Location()
	if err != nil {
		return nil, err
	}

	svc := &Services{}
	opts := []converter.Option{
		converter.WithMapper(mapper.New(mapper.WithLocation(loc))),
		converter.WithOutputOptions(cfg.Convert.OutputOptions()),
		converter.WithLogger(logger),
	}

	if cfg.Ledger.Enabled() {
		db, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("init ledger: %w", err)
		}
		svc.Ledger = db
		opts = append(opts, converter.WithLedger(db))
	}

	svc.Converter = converter.New(append(opts, extra...)...)
	return svc, nil
}

// Close releases the ledger, if open.
func (s *Services) Close() error {
	if s.Ledger == nil {
		return nil
	}
	return s.Ledger.Close()
}

// NewHTTPHandler builds the serve-mode router: health checks plus the API
// mounted under /api.
func NewHTTPHandler(cfg *Config, svc *Services, events http.Handler) http.Handler {
	h := api.NewHandler(svc.Converter, svc.Ledger, cfg.Convert.OutputOptions())
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, events)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if svc.Ledger != nil {
			if err := svc.Ledger.Ping(); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "ledger unavailable")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)
	return r
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, status)
}

// Run starts the HTTP server, and the watcher when watch.source is set,
// until ctx is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stdout, cfg.App.LogLevel, true)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("ledger_path", cfg.Ledger.Path),
		slog.String("watch_source", cfg.Watch.Source),
		slog.String("duplicate_names", cfg.Convert.DuplicateNames),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker()
	defer broker.Close()

	svc, err := NewServices(cfg, logger, converter.WithEvents(broker.PublishConversion))
	if err != nil {
		return err
	}
	defer svc.Close()

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           NewHTTPHandler(cfg, svc, broker),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled() {
		g.Go(func() error {
			// The watched output is regenerated on every change.
			out := cfg.Convert.OutputOptions()
			out.Overwrite = true
			conv := svc.Converter.With(converter.WithOutputOptions(out))

			var store watch.ChecksumStore
			if svc.Ledger != nil {
				store = svc.Ledger
			}
			syncer := watch.NewSyncer(conv, store, cfg.Watch.Source, cfg.Watch.Output, logger)
			if err := watch.Watch(gCtx, syncer, cfg.Watch.Debounce, logger); err != nil {
				return fmt.Errorf("watcher error: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		stop()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
