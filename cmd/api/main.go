package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sangkips/bursar-api/internal/application/service"
	"github.com/sangkips/bursar-api/internal/config"
	"github.com/sangkips/bursar-api/internal/domain/gateway"
	domainRepo "github.com/sangkips/bursar-api/internal/domain/repository"
	"github.com/sangkips/bursar-api/internal/infrastructure/database"
	infraGateway "github.com/sangkips/bursar-api/internal/infrastructure/gateway"
	"github.com/sangkips/bursar-api/internal/infrastructure/lock"
	"github.com/sangkips/bursar-api/internal/infrastructure/memory"
	"github.com/sangkips/bursar-api/internal/infrastructure/repository"
	"github.com/sangkips/bursar-api/internal/presentation/http/middleware"
	"github.com/sangkips/bursar-api/internal/presentation/http/routes"
	"github.com/sangkips/bursar-api/pkg/logger"
	"github.com/sangkips/bursar-api/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg := config.Load()

	zlog, err := logger.New(cfg.App.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, ready, err := openStorage(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to open storage", zap.Error(err))
	}

	// A nil *Midtrans must not become a non-nil interface.
	var gw gateway.Gateway
	if m := infraGateway.NewMidtrans(cfg.Gateway); m != nil {
		gw = m
		zlog.Info("midtrans gateway enabled", zap.Bool("production", cfg.Gateway.MidtransProduction))
	}

	core := service.NewCore(repos, lock.NewManager(cfg.Billing.LockTimeout), service.SystemClock{}, zlog, cfg.Billing)
	services := service.NewServices(core, gw)

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiryHours)

	router := routes.Setup(routes.NewHandlers(services, zlog), &routes.Deps{
		JWTManager:      jwtManager,
		Cfg:             cfg,
		Log:             zlog,
		IdempotencyRepo: repos.Idempotency,
		RateLimiter:     middleware.NewTenantRateLimiter(ctx, middleware.RateLimiterConfigFrom(cfg.RateLimit)),
		Now:             core.Clock.Now,
		Ready:           ready,
	})

	port := cfg.App.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		services.Scheduler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		zlog.Info("starting server",
			zap.String("service", cfg.App.Name),
			zap.String("port", port),
			zap.String("env", cfg.App.Env),
			zap.String("storage", cfg.Database.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		zlog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
	zlog.Info("server stopped")
}

// openStorage returns the repository registry for the configured driver and a
// readiness probe for the health endpoint.
func openStorage(cfg *config.Config, zlog *zap.Logger) (*domainRepo.Registry, func(context.Context) error, error) {
	if cfg.Database.Driver == "memory" {
		zlog.Warn("using in-memory storage, data is lost on restart")
		return memory.NewRegistry(memory.Open()), nil, nil
	}

	db, err := database.NewPostgresDB(&cfg.Database, zlog, cfg.App.Debug)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db, zlog); err != nil {
			return nil, nil, err
		}
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, zlog); err != nil {
			return nil, nil, err
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return repository.NewRegistry(db), sqlDB.PingContext, nil
}
