// Package bootstrap wires configuration, stores and services shared by the
// API server and the slactl command.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/events"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/persistence"
	"github.com/luiscanel/service-desk/internal/repository"
	"github.com/luiscanel/service-desk/internal/service"
	"github.com/luiscanel/service-desk/internal/sla"
	"github.com/luiscanel/service-desk/internal/worker"
)

// Container holds the long-lived collaborators of one process.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Metrics

	Postgres      *persistence.Postgres
	Redis         *persistence.Redis
	PolicyChannel *persistence.PolicyChannel
	Queue         *persistence.NotificationQueue

	StaffRepo  repository.StaffRepository
	TicketRepo repository.TicketRepository

	Catalog    *sla.Catalog
	Engine     *sla.Engine
	Dispatcher events.Dispatcher

	Auth          *service.AuthService
	Policies      *service.SlaPolicyService
	Tickets       *service.TicketService
	Monitor       *service.SlaMonitorService
	Notifications *service.NotificationService
}

// New connects to Postgres and Redis, applies migrations and loads the policy
// catalog. The caller must Close the container.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	redis := persistence.NewRedis(ctx, cfg.Redis, logger)

	pool := pg.PoolHandle()
	c := &Container{
		Config:        cfg,
		Logger:        logger,
		Metrics:       observability.NewMetrics(),
		Postgres:      pg,
		Redis:         redis,
		PolicyChannel: persistence.NewPolicyChannel(redis, cfg.Redis.PolicyChannel),
		StaffRepo:     repository.NewStaffRepository(pool),
		TicketRepo:    repository.NewTicketRepository(pool),
		Catalog:       sla.NewCatalog(),
		Engine:        sla.NewEngine(cfg.SLA.WarningPercent),
		Dispatcher:    events.NewInMemoryDispatcher(logger),
	}
	policyRepo := repository.NewSlaPolicyRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)
	historyRepo := repository.NewTicketHistoryRepository(pool)

	c.Auth = service.NewAuthService(*cfg, service.AuthDependencies{StaffRepo: c.StaffRepo})
	c.Policies = service.NewSlaPolicyService(service.SlaPolicyDependencies{
		PolicyRepo: policyRepo,
		Catalog:    c.Catalog,
		Publisher:  c.PolicyChannel,
		Logger:     logger,
	})
	c.Tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo:  c.TicketRepo,
		MessageRepo: messageRepo,
		HistoryRepo: historyRepo,
		Catalog:     c.Catalog,
		Engine:      c.Engine,
		Dispatcher:  c.Dispatcher,
	})
	notifier := sla.NewNotifier(c.TicketRepo, service.NewBreachPublisher(c.Dispatcher), logger)
	c.Monitor = service.NewSlaMonitorService(service.SlaMonitorDependencies{
		TicketRepo:       c.TicketRepo,
		Catalog:          c.Catalog,
		Engine:           c.Engine,
		Notifier:         notifier,
		Metrics:          c.Metrics,
		Logger:           logger,
		NearBreachWindow: cfg.SLA.NearBreachWindow,
		BatchSize:        cfg.SLA.SweepBatchSize,
	})
	c.Queue = persistence.NewNotificationQueue(redis, cfg.Notification.QueueKey)
	c.Notifications = service.NewNotificationService(service.NotificationDependencies{
		Dispatcher:  c.Dispatcher,
		TicketRepo:  c.TicketRepo,
		HistoryRepo: historyRepo,
		Queue:       c.Queue,
		Logger:      logger,
		Config:      cfg.Notification,
	})
	worker.StartNotificationWorker(c.Notifications)

	if err := c.loadPolicies(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) loadPolicies(ctx context.Context) error {
	if c.Config.SLA.SeedDefaults {
		if _, err := c.Policies.EnsureDefaultPolicies(ctx); err != nil {
			return fmt.Errorf("seed default policies: %w", err)
		}
	}
	if path := c.Config.SLA.PolicyFile; path != "" {
		created, updated, err := c.Policies.SeedFromFile(ctx, path)
		if err != nil {
			return fmt.Errorf("seed policies from %s: %w", path, err)
		}
		c.Logger.Info("policy file applied",
			zap.String("path", path),
			zap.Int("created", created),
			zap.Int("updated", updated))
	}
	if err := c.Policies.RefreshCatalog(ctx); err != nil {
		return fmt.Errorf("load policy catalog: %w", err)
	}
	c.Logger.Info("policy catalog loaded", zap.Int("policies", c.Catalog.Len()))
	return nil
}

// Sweeper builds the breach sweeper from configuration.
func (c *Container) Sweeper() *worker.SlaSweeper {
	return worker.NewSlaSweeper(c.TicketRepo, c.Monitor, c.Metrics, c.Logger, worker.SweeperConfig{
		Interval:    c.Config.SLA.SweepInterval,
		Concurrency: c.Config.SLA.SweepConcurrency,
		BatchSize:   c.Config.SLA.SweepBatchSize,
	})
}

// PolicyListener builds the cross-instance catalog listener.
func (c *Container) PolicyListener() *worker.PolicyListener {
	return worker.NewPolicyListener(c.PolicyChannel, c.Policies, c.Logger)
}

// Close releases connections.
func (c *Container) Close() {
	c.Redis.Close()
	c.Postgres.Close()
}
