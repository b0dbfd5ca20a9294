package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/grievance-portal/internal/api/http"
	"github.com/spec-kit/grievance-portal/internal/api/http/handlers"
	"github.com/spec-kit/grievance-portal/internal/auth"
	"github.com/spec-kit/grievance-portal/internal/config"
	"github.com/spec-kit/grievance-portal/internal/events"
	"github.com/spec-kit/grievance-portal/internal/mailer"
	"github.com/spec-kit/grievance-portal/internal/observability"
	"github.com/spec-kit/grievance-portal/internal/persistence"
	"github.com/spec-kit/grievance-portal/internal/repository"
	"github.com/spec-kit/grievance-portal/internal/service"
	"github.com/spec-kit/grievance-portal/internal/storage"
	"github.com/spec-kit/grievance-portal/internal/validator"
	"github.com/spec-kit/grievance-portal/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, cfg.App.Name, logger)
	defer redis.Close()

	attachments, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("failed to init attachment storage", zap.Error(err), zap.String("backend", string(cfg.Storage.Backend)))
	}

	pool := pg.PoolHandle()
	identityRepo := repository.NewIdentityRepository(pool)
	grievanceRepo := repository.NewGrievanceRepository(pool)
	historyRepo := repository.NewGrievanceHistoryRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)

	dispatcher := events.NewInMemoryDispatcher(nil)
	workers, err := worker.Start(*cfg, worker.Dependencies{
		Dispatcher: dispatcher,
		Resets:     resetRepo,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to start workers", zap.Error(err))
	}

	var resetMailer mailer.Sender
	if smtp, err := mailer.New(cfg.Notification); err == nil {
		resetMailer = smtp
	} else if errors.Is(err, mailer.ErrNotConfigured) {
		logger.Warn("NOTIFY_SMTP_HOST not set; password reset requests will be refused")
	} else {
		logger.Fatal("invalid mail settings", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		IdentityRepo:      identityRepo,
		PasswordResetRepo: resetRepo,
		Limiter:           service.NewRedisLimiter(redis),
		Mailer:            resetMailer,
		Dispatcher:        dispatcher,
		Logger:            logger,
	})
	grievanceService := service.NewGrievanceService(*cfg, service.GrievanceDependencies{
		GrievanceRepo: grievanceRepo,
		HistoryRepo:   historyRepo,
		Storage:       attachments,
		Dispatcher:    dispatcher,
		Metrics:       metrics,
		Logger:        logger,
	})
	identityService := service.NewIdentityService(*cfg, service.IdentityDependencies{
		IdentityRepo: identityRepo,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})

	if err := identityService.EnsureSuperAdmin(ctx, cfg.Bootstrap); err != nil {
		logger.Fatal("failed to bootstrap super admin", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), identityRepo)
	validate := validator.New()

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: int(cfg.Storage.MaxUploadBytes) + 1<<20,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService, validate),
		Grievances:     handlers.NewGrievanceHandler(grievanceService, validate),
		Identities:     handlers.NewIdentityHandler(identityService, validate),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
	workers.Stop(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
