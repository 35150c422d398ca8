package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/wafflestudio/waffice/api/handler"
	"github.com/wafflestudio/waffice/internal/app"
	"github.com/wafflestudio/waffice/internal/config"
	"github.com/wafflestudio/waffice/internal/infrastructure/monitor"
	pgInfra "github.com/wafflestudio/waffice/internal/infrastructure/postgres"
	redisInfra "github.com/wafflestudio/waffice/internal/infrastructure/redis"
	"github.com/wafflestudio/waffice/internal/middleware"
	"github.com/wafflestudio/waffice/internal/pagination"
	"github.com/wafflestudio/waffice/internal/router"
	"github.com/wafflestudio/waffice/internal/lifecycle"
	"github.com/wafflestudio/waffice/pkg/httpcontext"
	"github.com/wafflestudio/waffice/pkg/logger"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/repository/boltdb"
	"github.com/wafflestudio/waffice/repository/postgres"
	redisRepo "github.com/wafflestudio/waffice/repository/redis"
)

func main() {
	flags := pflag.NewFlagSet("waffice", pflag.ExitOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	migrateOnly := flags.Bool("migrate-only", false, "apply database migrations and exit")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		Output:   cfg.Logger.Output,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if *migrateOnly {
		if cfg.Storage.Driver != config.StoragePostgres {
			zapLogger.Fatal("migrations require the postgres storage driver")
		}
		if err := pgInfra.RunMigrations(cfg, true, zapLogger); err != nil {
			zapLogger.Fatal("migrations failed", zap.Error(err))
		}
		return
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	mon := monitor.New(cfg.Monitor.Interval, zapLogger.Named("monitor"))

	store, err := openStore(appCtx, cfg, manager, mon, zapLogger)
	if err != nil {
		zapLogger.Fatal("storage initialization failed", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	var (
		identityCache repository.IdentityCache
		limiter       middleware.Limiter
	)
	if cfg.Redis.Enabled {
		redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("redis connection failed", zap.Error(err))
		}
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		mon.Register("redis", monitor.PingFunc(redisInfra.Pinger(redisClient)), false)
		identityCache = redisRepo.NewIdentityCache(redisClient, cfg.Redis.IdentityTTL)
		limiter = middleware.NewRedisLimiter(redisClient, zapLogger.Named("ratelimit"))
	}

	if err := mon.Start(); err != nil {
		zapLogger.Fatal("monitor start failed", zap.Error(err))
	}
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	pages := pagination.PageSizeConfig{
		Default: cfg.Pagination.DefaultPageSize,
		Max:     cfg.Pagination.MaxPageSize,
	}
	services := app.NewServices(store, identityCache, pages, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Users:    apiHandler.NewUserHandler(services.Users, services.Audit, services.Projects, ctxAdapter, zapLogger),
		Projects: apiHandler.NewProjectHandler(services.Projects, services.Members, services.Gate, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	r := router.New(handlers,
		middleware.JWTAuth(cfg.JWT.Secret, zapLogger),
		middleware.Identity(services.Identity, cfg.Context.RequestTimeout, zapLogger),
		middleware.RateLimit(limiter, cfg.RateLimit.Mutations, cfg.RateLimit.Window),
	)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("storage", cfg.Storage.Driver))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

// openStore connects the configured backend, registers its shutdown hook
// and health probe, and returns its repositories.
func openStore(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, mon *monitor.Monitor, zapLogger *zap.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if err := pgInfra.RunMigrations(cfg, false, zapLogger); err != nil {
			return repository.Store{}, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
		if err != nil {
			return repository.Store{}, err
		}
		manager.Register("postgres", func(context.Context) error {
			pgInfra.Close(pool, zapLogger)
			return nil
		})
		db := postgres.NewDB(pool)
		mon.Register("postgresql", db, true)
		return db.Repositories(), nil

	case config.StorageBolt:
		store, err := boltdb.Open(cfg.Storage.BoltPath)
		if err != nil {
			return repository.Store{}, err
		}
		manager.Register("bolt", func(context.Context) error {
			return store.Close()
		})
		mon.Register("bolt", store, true)
		zapLogger.Info("opened bolt store", zap.String("path", cfg.Storage.BoltPath))
		return store.Repositories(), nil
	}
	return repository.Store{}, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
