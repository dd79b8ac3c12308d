package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"smartpdv/backend/internal/cache"
	"smartpdv/backend/internal/config"
	"smartpdv/backend/internal/httpapi"
	"smartpdv/backend/internal/report"
	"smartpdv/backend/internal/service"
	"smartpdv/backend/internal/store"
	filestore "smartpdv/backend/internal/store/file"
	"smartpdv/backend/internal/store/memory"
	pgstore "smartpdv/backend/internal/store/postgres"
	sqlitestore "smartpdv/backend/internal/store/sqlite"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "env file: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load()

	logger, err := newLogger(cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid report timezone", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, closers, err := openGateway(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage unavailable", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}

	cacheStore := cache.DashboardCache(cache.NoopDashboardCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisDashboardCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using noop cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			logger.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		logger.Info("cache: noop")
	}

	reports := report.NewEngine(cacheStore, cfg.DashboardCacheTTL(), loc)
	svc := service.New(repo, reports, logger)
	if err := svc.Load(ctx); err != nil {
		logger.Fatal("load document", zap.Error(err))
	}

	auth, err := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		logger.Fatal("auth setup", zap.Error(err))
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, logger)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("smartpdv backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	if svc.Dirty() {
		if err := svc.Flush(shutdownCtx); err != nil {
			logger.Error("unsaved changes lost", zap.Error(err))
		}
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func newLogger(format string) (*zap.Logger, error) {
	if format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openGateway opens the configured document store. A configured backend
// that cannot be reached is fatal; there is no silent fallback to memory.
func openGateway(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Gateway, []func() error, error) {
	closers := make([]func() error, 0, 2)

	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres driver")
		}
		if err := pgstore.Migrate(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: postgres")
		return pg, append(closers, pg.Close), nil
	case config.DriverSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = "data/smartpdv.db"
		}
		db, err := sqlitestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: sqlite", zap.String("path", path))
		return db, append(closers, db.Close), nil
	case config.DriverFile:
		path := cfg.DataFile
		if path == "" {
			path = "data/smartpdv.json"
		}
		fs, err := filestore.New(path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("repository: file", zap.String("path", fs.Path()))
		return fs, closers, nil
	case config.DriverMemory, "":
		logger.Info("repository: in-memory", zap.Bool("seeded", cfg.SeedDemo))
		if cfg.SeedDemo {
			return memory.NewSeeded(), closers, nil
		}
		return memory.New(), closers, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be set and at least 8 characters")
	}
	if cfg.AdminPassword == cfg.AdminUsername {
		return fmt.Errorf("ADMIN_PASSWORD must differ from ADMIN_USERNAME")
	}
	return nil
}
