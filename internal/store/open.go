package store

import (
	"fmt"

	"github.com/stellarlinkco/batch-eval/internal/config"
)

// Open builds the store described by the config's storage block.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("store: missing config")
	}
	dsn, err := cfg.Storage.DSN()
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return NewSQLiteStore(dsn)
}
