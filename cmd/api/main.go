package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/luiscanel/service-desk/internal/api/http"
	"github.com/luiscanel/service-desk/internal/api/http/handlers"
	"github.com/luiscanel/service-desk/internal/auth"
	"github.com/luiscanel/service-desk/internal/bootstrap"
	"github.com/luiscanel/service-desk/internal/config"
	"github.com/luiscanel/service-desk/internal/observability"
	"github.com/luiscanel/service-desk/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer container.Close()

	authMiddleware := auth.NewAuthMiddleware(container.Auth.TokenManager(), container.StaffRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, container.Postgres, container.Redis),
		Staff:          handlers.NewStaffHandler(container.Auth),
		Tickets:        handlers.NewTicketsHandler(container.Tickets, container.Monitor),
		SlaPolicies:    handlers.NewSlaPoliciesHandler(container.Policies),
		SlaMonitor:     handlers.NewSlaMonitorHandler(container.Monitor, container.Metrics, container.Queue),
		AuthMiddleware: authMiddleware.Handle,
	})

	wait := worker.Start(ctx, worker.Workers{
		Sweeper:        container.Sweeper(),
		PolicyListener: container.PolicyListener(),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.Shutdown(); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
