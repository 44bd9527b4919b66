package store

import (
	"fmt"
	"os"
	"path/filepath"

	"llmspub/internal/pub"
)

// Config selects and parameterizes the store backend.
type Config struct {
	Type    string // "sqlite" or "memory"
	DataDir string // sqlite only
}

// NewFromConfig creates a Store implementation based on the config type.
// "memory" is a SQLite database that lives only for the process lifetime.
func NewFromConfig(cfg Config) (pub.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "llmspub.db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
