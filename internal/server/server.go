// Package server wires configuration, storage and services, and runs the API
// server and the notification worker.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gatherly-dev/gatherly/internal/api"
	"github.com/gatherly-dev/gatherly/internal/api/handlers"
	"github.com/gatherly-dev/gatherly/internal/config"
	"github.com/gatherly-dev/gatherly/internal/db"
	"github.com/gatherly-dev/gatherly/internal/logger"
	"github.com/gatherly-dev/gatherly/internal/mailer"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"github.com/gatherly-dev/gatherly/internal/worker"
	"golang.org/x/sync/errgroup"
)

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Mode    string // Run mode: server, worker, or both
	Version string // Version string to report
}

// Open loads configuration, initializes logging, connects and migrates the
// database, and wires the services.
func Open() (*App, error) {
	appCfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(appCfg.Log.Format, appCfg.Log.Level)

	database, err := db.New(appCfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	return NewApp(appCfg, database, nil, slog.Default())
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "both"
	}
	runServer := mode == "server" || mode == "both"
	runWorker := mode == "worker" || mode == "both"
	if !runServer && !runWorker {
		return fmt.Errorf("invalid mode %q: valid modes are server, worker, both", mode)
	}

	app, err := Open()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := checkMode(mode, app.Queue); err != nil {
		return err
	}

	if cfg.Port != 0 {
		app.Config.Server.Port = cfg.Port
	}
	slog.Info("Starting Gatherly", "version", cfg.Version, "mode", mode, "queue", app.Config.Queue.Type)

	if err := app.BootstrapAdmin(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if runWorker {
		sender, err := mailer.New(app.Config.Mail, app.Logger)
		if err != nil {
			return err
		}
		w := worker.New(app.DB, app.Queue, sender, app.Metrics, app.Logger, worker.Options{
			MaxWorkers:  app.Config.Notify.Workers,
			SendTimeout: app.Config.Notify.SendTimeout,
			MaxRetries:  app.Config.Notify.MaxRetries,
			RetryBase:   app.Config.Notify.RetryBase,
		})

		// The in-memory queue does not survive restarts; the outbox does.
		if _, ok := app.Queue.(*queue.MemoryQueue); ok {
			if _, err := w.LoadBacklog(ctx); err != nil {
				slog.Warn("Failed to load pending notifications", "error", err)
			}
		}

		g.Go(func() error {
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("worker: %w", err)
			}
			slog.Info("Worker stopped")
			return nil
		})
	}

	if runServer {
		router := api.NewRouter(app.Config, app.RouterDeps())
		addr := fmt.Sprintf(":%d", app.Config.Server.Port)
		srv := &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			slog.Info("Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			slog.Info("Server stopped")
			return nil
		})
	}

	err = g.Wait()
	slog.Info("Gatherly exited")
	return err
}

// checkMode rejects split deployments on the in-memory queue: a server-only
// process would enqueue into a channel no worker drains.
func checkMode(mode string, q queue.Queue) error {
	if _, ok := q.(*queue.MemoryQueue); ok && mode != "both" {
		return fmt.Errorf("mode %q needs a shared queue: set queue.type to valkey or run with --mode both", mode)
	}
	return nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, cfg)
}
