package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gatherly-dev/gatherly/internal/api"
	"github.com/gatherly-dev/gatherly/internal/auth"
	"github.com/gatherly-dev/gatherly/internal/config"
	"github.com/gatherly-dev/gatherly/internal/metrics"
	"github.com/gatherly-dev/gatherly/internal/models"
	"github.com/gatherly-dev/gatherly/internal/notify"
	"github.com/gatherly-dev/gatherly/internal/queue"
	"github.com/gatherly-dev/gatherly/internal/rbac"
	"github.com/gatherly-dev/gatherly/internal/service"
	"gorm.io/gorm"
)

// App is the wired set of services shared by the HTTP server, the worker and the CLI.
type App struct {
	Config        *config.Config
	DB            *gorm.DB
	Logger        *slog.Logger
	Metrics       *metrics.Metrics
	Policy        *rbac.Policy
	Queue         queue.Queue
	Dispatcher    *notify.Dispatcher
	Authenticator *auth.BasicAuthenticator
	Roles         *service.RoleService
	Directory     *service.DirectoryService
	Catalog       *service.CatalogService
	RSVPs         *service.RSVPService
	Dashboard     *service.DashboardService
}

// NewApp wires every service on a migrated database. q may be nil, in which
// case the queue is created from cfg.
func NewApp(cfg *config.Config, database *gorm.DB, q queue.Queue, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := rbac.NewPolicy(database, logger)
	if err != nil {
		return nil, err
	}
	if err := policy.SeedDefaults(models.DefaultRoles); err != nil {
		return nil, fmt.Errorf("failed to seed role permissions: %w", err)
	}

	if q == nil {
		q, err = createQueue(cfg, database)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize notification queue: %w", err)
		}
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(database, q, m, logger, cfg.Auth.FrontendURL, cfg.Notify.EnqueueTimeout)

	roles := service.NewRoleService(database, policy, logger)
	tokens := auth.NewActivationTokens(cfg.Auth.JWTSecret, cfg.Auth.ActivationTTL)
	catalog := service.NewCatalogService(database, nil)

	return &App{
		Config:        cfg,
		DB:            database,
		Logger:        logger,
		Metrics:       m,
		Policy:        policy,
		Queue:         q,
		Dispatcher:    dispatcher,
		Authenticator: auth.NewBasicAuthenticator(database, policy, cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
		Roles:         roles,
		Directory:     service.NewDirectoryService(database, roles, tokens, dispatcher, logger),
		Catalog:       catalog,
		RSVPs:         service.NewRSVPService(database, dispatcher, m, nil, logger),
		Dashboard:     service.NewDashboardService(database, catalog, nil),
	}, nil
}

// RouterDeps returns the services the HTTP layer needs.
func (a *App) RouterDeps() api.Deps {
	return api.Deps{
		DB:            a.DB,
		Authenticator: a.Authenticator,
		Directory:     a.Directory,
		Roles:         a.Roles,
		Catalog:       a.Catalog,
		RSVPs:         a.RSVPs,
		Dashboard:     a.Dashboard,
		Metrics:       a.Metrics,
		Logger:        a.Logger,
	}
}

// Close releases the queue.
func (a *App) Close() error {
	return a.Queue.Close()
}

// BootstrapAdmin creates an admin from ADMIN_USERNAME, ADMIN_PASSWORD and
// ADMIN_EMAIL when they are set and no users exist yet.
func (a *App) BootstrapAdmin(ctx context.Context) error {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	email := os.Getenv("ADMIN_EMAIL")

	if username == "" || password == "" {
		a.Logger.Info("No ADMIN_USERNAME or ADMIN_PASSWORD set, skipping default admin creation")
		return nil
	}

	count, err := a.Directory.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		a.Logger.Info("Users already exist, skipping default admin creation")
		return nil
	}

	user, err := a.Directory.CreateAdmin(ctx, username, email, password)
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	a.Logger.Info("Created default admin user", "username", user.Username)
	return nil
}

// createQueue creates a queue based on configuration.
func createQueue(cfg *config.Config, database *gorm.DB) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "", "memory":
		return queue.NewMemoryQueue(cfg.Queue.BufferSize), nil
	case "valkey":
		if cfg.Queue.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when queue type is valkey")
		}
		return queue.NewValkeyQueue(cfg.Queue.ValkeyAddr, database)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, valkey)", cfg.Queue.Type)
	}
}
