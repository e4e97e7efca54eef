package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/commission-service/internal/api/http"
	"github.com/spec-kit/commission-service/internal/api/http/handlers"
	"github.com/spec-kit/commission-service/internal/auth"
	"github.com/spec-kit/commission-service/internal/config"
	"github.com/spec-kit/commission-service/internal/events"
	"github.com/spec-kit/commission-service/internal/gateway"
	"github.com/spec-kit/commission-service/internal/observability"
	"github.com/spec-kit/commission-service/internal/persistence"
	"github.com/spec-kit/commission-service/internal/repository"
	"github.com/spec-kit/commission-service/internal/repository/memory"
	"github.com/spec-kit/commission-service/internal/service"
	"github.com/spec-kit/commission-service/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
	} else {
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.New()
	}

	// A nil cache interface keeps the stats service uncached.
	var redisConn *persistence.Redis
	var redisClient *goredis.Client
	var statsCache service.StatsCache
	if cfg.Redis.Enabled() {
		redisConn = persistence.NewRedis(cfg.Redis, logger)
		defer redisConn.Close()
		redisClient = redisConn.Client
		statsCache = persistence.NewStatsCache(redisClient)
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	deps := service.Dependencies{Store: store, Dispatcher: dispatcher}

	var gw gateway.Gateway = gateway.NewSandbox()
	if cfg.Gateway.Mode == "http" {
		gw = gateway.NewHTTPGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout())
	}

	authService := service.NewAuthService(cfg.Auth, deps)
	saleService := service.NewSaleService(deps)
	reviewService := service.NewReviewService(deps)
	rosterService := service.NewRosterService(deps)
	statsService := service.NewStatsService(deps, statsCache, cfg.Stats, logger)
	paymentService := service.NewPaymentService(deps, gw, cfg.Gateway.Currency, logger)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)

	worker.StartEventWorkers(dispatcher, worker.Subscribers{
		Notifications: notificationService,
		Stats:         statsService,
		Metrics:       metrics,
	})

	created, err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
	if err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}
	if created {
		logger.Info("bootstrap admin created", zap.String("email", cfg.Auth.BootstrapAdminEmail))
	}

	loginLimiter, err := httptransport.NewRateLimiter(cfg.RateLimit.Login, "limiter:login", redisClient)
	if err != nil {
		logger.Fatal("invalid login rate limit", zap.Error(err))
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), store.Repos().Users)
	app := httptransport.NewApp(cfg.App, logger, metrics, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, store, redisConn),
		Auth:           handlers.NewAuthHandler(authService),
		Sales:          handlers.NewSalesHandler(saleService, reviewService),
		Roster:         handlers.NewRosterHandler(rosterService, statsService),
		Payments:       handlers.NewPaymentsHandler(paymentService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics.Handler(),
		LoginLimiter:   loginLimiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
