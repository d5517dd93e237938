package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httpapi "github.com/spec-kit/repair-desk/internal/api/http"
	"github.com/spec-kit/repair-desk/internal/api/http/handlers"
	"github.com/spec-kit/repair-desk/internal/advisor"
	"github.com/spec-kit/repair-desk/internal/auth"
	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/feed"
	"github.com/spec-kit/repair-desk/internal/llm"
	"github.com/spec-kit/repair-desk/internal/observability"
	"github.com/spec-kit/repair-desk/internal/persistence"
	"github.com/spec-kit/repair-desk/internal/repository"
	"github.com/spec-kit/repair-desk/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	metrics := observability.NewMetrics()

	requestRepo := repository.NewRequestRepository(pg.PoolHandle())
	technicianRepo := repository.NewTechnicianRepository(pg.PoolHandle())
	historyRepo := repository.NewHistoryRepository(pg.PoolHandle())
	userRepo := repository.NewUserRepository(pg.PoolHandle())

	dispatcher := events.NewInMemoryDispatcher()
	notificationSvc := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	notificationSvc.RegisterHandlers()

	liveFeed := feed.New(requestRepo, feed.NewRedisNotifier(rdb.Client), logger)

	requestSvc := service.NewRequestService(service.RequestDependencies{
		RequestRepo:    requestRepo,
		TechnicianRepo: technicianRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
		Notifier:       liveFeed,
		Logger:         logger,
	})
	authSvc := service.NewAuthService(cfg.Auth, userRepo)

	modelClient, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		logger.Fatal("init model client", zap.Error(err))
	}
	advisorSvc := advisor.NewService(modelClient, logger)

	authMW := auth.NewAuthMiddleware(authSvc.TokenManager(), userRepo)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httpapi.ErrorHandler(logger, metrics),
	})
	httpapi.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httpapi.RegisterRoutes(app, httpapi.RouterDeps{
		Auth:     handlers.NewAuthHandler(authSvc),
		Requests: handlers.NewRequestsHandler(requestSvc, advisorSvc),
		Admin:    handlers.NewAdminRequestsHandler(requestSvc, liveFeed, logger),
		Advisor:  handlers.NewAdvisorHandler(advisorSvc, requestSvc),
		Health: handlers.NewHealthHandler(cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    rdb,
		}),
		AuthMW: authMW,
	})

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}
