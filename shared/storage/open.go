package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"transcript-stack/shared/config"
)

// Open returns the store selected by cfg.Driver
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return NewPostgres(ctx, PostgresConfig{
			DSN:          cfg.DatabaseURL,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
			ConnMaxLife:  time.Duration(cfg.ConnMaxLifeMin) * time.Minute,
		})
	case config.DriverMemory:
		log.Println("Warning: using in-memory storage, transcripts are lost on restart")
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
