package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/pitchside/internal/adapters/cache"
	"github.com/okian/pitchside/internal/adapters/directory"
	"github.com/okian/pitchside/internal/adapters/http/api"
	"github.com/okian/pitchside/internal/adapters/http/swagger"
	"github.com/okian/pitchside/internal/adapters/repository"
	"github.com/okian/pitchside/internal/adapters/repository/postgres"
	"github.com/okian/pitchside/internal/adapters/repository/sqlite"
	service "github.com/okian/pitchside/internal/app"
	"github.com/okian/pitchside/internal/config"
	"github.com/okian/pitchside/pkg/logger"
)

// openStore opens the configured assessment store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return postgres.Open(ctx, cfg.PostgresURL, int32(cfg.PostgresMaxConns)) //nolint:gosec // bounded by config validation
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// openCache returns the Redis progress cache when configured, otherwise an
// in-process one with the same TTL.
func openCache(ctx context.Context, cfg *config.Config) (service.ProgressCache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cache.WithMemoryTTL(cfg.ProgressCacheTTL)), nil
	}
	rc := cache.DefaultRedisConfig()
	rc.Addr = cfg.RedisAddr
	rc.Password = cfg.RedisPassword
	rc.DB = cfg.RedisDB
	rc.TTL = cfg.ProgressCacheTTL
	return cache.NewRedis(ctx, rc)
}

// loadDirectory reads the roster file, or the built-in sample when none is
// configured.
func loadDirectory(cfg *config.Config) (*directory.Directory, error) {
	if cfg.RosterFile == "" {
		return directory.Sample()
	}
	return directory.Load(cfg.RosterFile)
}

// buildService assembles and starts the assessment service over the
// configured roster.
func buildService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, *directory.Directory, error) {
	dir, err := loadDirectory(cfg)
	if err != nil {
		return nil, nil, err
	}
	groups, players, skills, actors := dir.Counts()
	log.Info(ctx, "roster loaded",
		logger.String("file", cfg.RosterFile),
		logger.Int("groups", groups),
		logger.Int("players", players),
		logger.Int("skills", skills),
		logger.Int("actors", actors),
	)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StorageDriver, err)
	}

	progress, err := openCache(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open progress cache: %w", err)
	}

	svc := service.New(
		service.WithLogger(log),
		service.WithStore(store),
		service.WithPlayers(dir),
		service.WithSkills(dir),
		service.WithProgressCache(progress),
		service.WithConcealForbidden(cfg.ConcealForbidden),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("start service: %w", err)
	}
	return svc, dir, nil
}

// newMux registers the docs and API routes.
func newMux(ctx context.Context, cfg *config.Config, svc *service.Service, dir *directory.Directory, log logger.Logger) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	if err := swagger.Register(ctx, mux); err != nil {
		return nil, err
	}

	api.NewServer(svc, dir,
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
		api.WithStats(svc),
		api.WithHealth(svc),
	).Register(ctx, mux)
	return mux, nil
}
