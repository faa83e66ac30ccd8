// Package storage opens the configured cooldown store.
package storage

import (
	"fmt"
	"io"

	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/storage/jsonstore"
	"github.com/keshon/interkit/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Drivers.
const (
	SQLite = "sqlite"
	JSON   = "json"
)

// Store is a cooldown store holding resources until closed.
type Store interface {
	cooldown.Store
	io.Closer
}

// Open opens the store for driver at path. The json driver keeps records in
// memory when path is empty.
func Open(driver, path string, log zerolog.Logger) (Store, error) {
	switch driver {
	case SQLite:
		s, err := sqlite.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return s, nil
	case JSON:
		cfg := jsonstore.DefaultConfig(path)
		cfg.Logger = log
		s, err := jsonstore.OpenWithConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("open json store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
