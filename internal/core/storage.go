package core

import (
	"context"
	"fmt"

	"sampleregistry/internal/config"
	"sampleregistry/internal/infra/persistence/memory"
	"sampleregistry/internal/infra/persistence/postgres"
	"sampleregistry/internal/infra/persistence/sqlite"
	"sampleregistry/pkg/domain"
)

// OpenStore selects a registry backend from cfg. An empty driver means sqlite.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (domain.Store, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case config.StorageSQLite, "":
		return sqlite.NewStore(cfg.SQLitePath)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
