// Package store persists raw and processed post records per competitor
// behind a pluggable Store interface. The backing format is a closed set of
// drivers selected once at startup; unknown drivers are a configuration
// error, not a runtime one.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/blogwatch/internal/config"
	"github.com/sells-group/blogwatch/internal/model"
)

// Store is the persistence interface for the pipeline. SaveRaw returns a
// source reference for the snapshot it wrote: a filesystem path for
// file-backed drivers, an opaque URI for database-backed ones. The batch
// lifecycle manager records that reference in its tracking file.
type Store interface {
	SaveRaw(ctx context.Context, posts []model.Post, competitor string) (string, error)
	SaveProcessed(ctx context.Context, posts []model.Post, competitor, sourceFilename string) error
	LoadRaw(ctx context.Context, competitor string) ([]model.Post, error)
	LoadProcessed(ctx context.Context, competitor string) ([]model.Post, error)
	LoadRawURLs(ctx context.Context, competitor string) (map[string]struct{}, error)
	Close() error
}

// Open constructs the Store for the configured driver.
func Open(cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "jsonl":
		return &tagged{inner: NewJSONL(cfg.DataDir)}, nil
	case "csv":
		return &tagged{inner: NewCSV(cfg.DataDir)}, nil
	case "sqlite":
		s, err := NewSQLite(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return &tagged{inner: s}, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
