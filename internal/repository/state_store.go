package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/edupage-sync/pkg/cache"
	"github.com/noah-isme/edupage-sync/pkg/config"
	"github.com/noah-isme/edupage-sync/pkg/database"
	"github.com/noah-isme/edupage-sync/pkg/storage"
)

// StateStore is the persistence contract shared by every backend.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// OpenStateStore builds the backend selected by cfg.State.Backend. The returned
// close function releases any connection the backend holds.
func OpenStateStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (StateStore, func() error, error) {
	noop := func() error { return nil }
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.State.Backend {
	case config.StateBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, fmt.Errorf("open redis state: %w", err)
		}
		repo := NewRedisStateRepository(client)
		logger.Info("state backend ready", zap.String("backend", "redis"), zap.String("host", cfg.Redis.Host))
		return repo, repo.Close, nil
	case config.StateBackendPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres state: %w", err)
		}
		repo := NewPostgresStateRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return nil, noop, err
		}
		logger.Info("state backend ready", zap.String("backend", "postgres"), zap.String("database", cfg.Database.Name))
		return repo, repo.Close, nil
	case config.StateBackendFile:
		local, err := storage.NewLocalStorage(cfg.State.Dir)
		if err != nil {
			return nil, noop, fmt.Errorf("open file state: %w", err)
		}
		logger.Info("state backend ready", zap.String("backend", "file"), zap.String("dir", cfg.State.Dir))
		return NewFileStateRepository(local), noop, nil
	case config.StateBackendMemory, "":
		logger.Info("state backend ready", zap.String("backend", "memory"), zap.Int("size_mb", cfg.State.SizeMB))
		return NewMemoryStateRepository(cache.NewMemory(cfg.State.SizeMB)), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown state backend %q", cfg.State.Backend)
	}
}
