package chatbridge

import (
	"context"
	"fmt"

	"github.com/boat-builder/chatbridge/memory"
)

// Storage persists the memory state of every user. A missing store loads as
// an empty mapping, not an error.
type Storage interface {
	LoadAll(ctx context.Context) (map[string]memory.State, error)
	SaveAll(ctx context.Context, users map[string]memory.State) error
	Close() error
}

type StorageKind string

const (
	StorageFile     StorageKind = "file"
	StorageSQLite   StorageKind = "sqlite"
	StoragePostgres StorageKind = "postgres"
	StorageRedis    StorageKind = "redis"
)

// StorageConfig selects and configures a backend. URL is used by the file
// backend, DSN by sqlite and postgres, Addr/Password/DB/Prefix by redis.
type StorageConfig struct {
	Kind     StorageKind
	URL      string
	DSN      string
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type storageFactory func(ctx context.Context, cfg StorageConfig) (Storage, error)

var storageFactories = map[StorageKind]storageFactory{
	StorageFile: func(_ context.Context, cfg StorageConfig) (Storage, error) {
		return NewFileStorage(cfg.URL), nil
	},
	StorageSQLite: func(_ context.Context, cfg StorageConfig) (Storage, error) {
		return NewSQLiteStorage(cfg.DSN)
	},
	StoragePostgres: func(_ context.Context, cfg StorageConfig) (Storage, error) {
		return NewPostgresStorage(cfg.DSN)
	},
	StorageRedis: func(ctx context.Context, cfg StorageConfig) (Storage, error) {
		return NewRedisStorage(ctx, RedisOptions{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Prefix:   cfg.Prefix,
		})
	},
}

// NewStorage resolves the configured backend once at startup.
func NewStorage(ctx context.Context, cfg StorageConfig) (Storage, error) {
	kind := cfg.Kind
	if kind == "" {
		kind = StorageFile
	}
	factory, ok := storageFactories[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStorageKind, cfg.Kind)
	}
	return factory(ctx, cfg)
}
