package storage

import (
	"context"
	"errors"
	"fmt"

	"tech-ai-bot/internal/core/ports"
)

// ErrNotPending is returned when a publish is recorded for an item that is
// missing or already published.
var ErrNotPending = errors.New("queue item is not pending")

// Options selects and configures a storage backend.
type Options struct {
	Driver string // sqlite, postgres or json
	Path   string // sqlite database or json file
	DSN    string // postgres connection string
}

// Open returns the configured storage backend.
func Open(ctx context.Context, opts Options) (ports.Storage, error) {
	switch opts.Driver {
	case "", "sqlite":
		return NewSQLiteStorage(ctx, opts.Path)
	case "postgres":
		return NewPostgresStorage(ctx, opts.DSN)
	case "json":
		return NewJSONStorage(opts.Path)
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
