package storage

import (
	"context"
	"fmt"
	"strings"

	"abaquest/internal/config"
	"abaquest/internal/database"
	"abaquest/internal/kv"
	"abaquest/internal/repository"
	"abaquest/internal/service"
)

// Backend is the storage the core runs on: a document store for the roster
// and progress plus the interaction log sink
type Backend struct {
	Documents    kv.Store
	Interactions service.InteractionSink
	Kind         string

	closeFn func() error
}

// Close releases the underlying connection
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open connects the backend selected by cfg. The SQL backend runs its
// migrations before returning.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch strings.ToLower(cfg.StorageBackend) {
	case "redis":
		return openRedis(ctx, cfg)
	case "sql", "":
		return openSQL(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

func openRedis(ctx context.Context, cfg *config.Config) (*Backend, error) {
	store, err := kv.NewRedisStore(ctx, kv.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Backend{
		Documents:    store,
		Interactions: kv.NewRedisInteractionLog(store),
		Kind:         "redis",
		closeFn:      store.Close,
	}, nil
}

func openSQL(ctx context.Context, cfg *config.Config) (*Backend, error) {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Backend{
		Documents:    repository.NewDocumentRepository(db),
		Interactions: repository.NewInteractionRepository(db),
		Kind:         "sql:" + db.Dialect.DriverName(),
		closeFn:      db.Close,
	}, nil
}
