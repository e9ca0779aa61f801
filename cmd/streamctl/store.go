package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/streams/store"
	"github.com/xraph/streams/store/memory"
	"github.com/xraph/streams/store/postgres"
	"github.com/xraph/streams/store/sqlite"
)

// openStore opens the backend named by spec:
//
//	memory
//	sqlite:<path>
//	postgres:<dsn>
//
// A bare postgres:// URL is accepted as the dsn.
func openStore(ctx context.Context, spec string) (store.Store, error) {
	spec = strings.TrimSpace(spec)
	kind, dsn, _ := strings.Cut(spec, ":")
	switch kind {
	case "", "memory":
		return memory.New(), nil
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("store %q: sqlite needs a file path", spec)
		}
		drv := sqlitedriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
		}
		return sqlite.New(db), nil
	case "postgres", "postgresql":
		if strings.HasPrefix(dsn, "//") {
			dsn = spec
		}
		if dsn == "" {
			return nil, fmt.Errorf("store %q: postgres needs a dsn", spec)
		}
		drv := pgdriver.New()
		if err := drv.Open(ctx, dsn); err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		db, err := grove.Open(drv)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return postgres.New(db), nil
	default:
		return nil, fmt.Errorf("unknown store %q (want memory, sqlite:<path> or postgres:<dsn>)", spec)
	}
}
