package source

import (
	"context"
	"fmt"
	"os"

	"github.com/JamesPrial/custom-gateway-core/pkg/config"
)

// NewBackend creates a new item backend based on the configuration and
// loads the seed file when one is configured
func NewBackend(ctx context.Context, cfg *config.SourceSettings) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	var backend Backend
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("source path is required for SQLite backend")
		}
		sqlite, err := NewSqliteBackend(cfg.Path, cfg.WALMode)
		if err != nil {
			return nil, err
		}
		backend = sqlite
	case "memory", "":
		backend = NewMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported source type: %s", cfg.Type)
	}

	if cfg.SeedPath == "" {
		return backend, nil
	}

	f, err := os.Open(cfg.SeedPath)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	if _, err := Seed(ctx, backend, f); err != nil {
		backend.Close()
		return nil, fmt.Errorf("seed %s: %w", cfg.SeedPath, err)
	}
	return backend, nil
}
