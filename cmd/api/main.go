package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/reputation-service/internal/api/http"
	"github.com/spec-kit/reputation-service/internal/api/http/handlers"
	"github.com/spec-kit/reputation-service/internal/auth"
	"github.com/spec-kit/reputation-service/internal/config"
	"github.com/spec-kit/reputation-service/internal/events"
	"github.com/spec-kit/reputation-service/internal/observability"
	"github.com/spec-kit/reputation-service/internal/persistence"
	"github.com/spec-kit/reputation-service/internal/repository"
	"github.com/spec-kit/reputation-service/internal/service"
	"github.com/spec-kit/reputation-service/internal/worker"
	"github.com/spec-kit/reputation-service/migrations"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, cfg.App, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store = repository.NewMemoryStore()
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, migrations.FS, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pg.Pool)
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var applied repository.IdempotencyStore = repository.NewMemoryIdempotencyStore()
	if redis.Enabled() {
		applied = repository.NewRedisIdempotencyStore(redis.Client)
	}

	dispatcher := events.NewInMemoryDispatcher()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTLMinutes)

	var granter service.ConnectsGranter = service.NewLogConnectsGranter(logger)
	if cfg.Referral.ConnectsServiceURL != "" {
		granter = service.NewHTTPConnectsGranter(
			cfg.Referral.ConnectsServiceURL,
			cfg.Referral.Timeout(),
			auth.NewServiceTokenSource(tokens, cfg.App.Name, auth.ScopeConnectsGrant),
		)
	}

	reputationService := service.NewReputationService(store, dispatcher, metrics, logger)
	referralService := service.NewReferralService(store, granter, dispatcher, metrics, logger, cfg.Referral)
	notificationService := service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, redis),
		Users:          handlers.NewUsersHandler(reputationService),
		Facts:          handlers.NewFactsHandler(reputationService),
		Referrals:      handlers.NewReferralsHandler(referralService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})

	g.Go(func() error {
		return worker.StartNotificationWorker(gctx, notificationService)
	})

	if redis.Enabled() && cfg.Commands.Enabled {
		processor := worker.NewCommandProcessor(reputationService, applied, cfg.Commands.IdempotencyTTL(), metrics, logger)
		consumer := worker.NewFactCommandConsumer(redis.Client, processor, cfg.Commands, metrics, logger)
		g.Go(func() error {
			return consumer.Run(gctx)
		})
	} else {
		logger.Info("fact-command consumer disabled")
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
	}
}
