package snapshot

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Driver names accepted by Open.
const (
	DriverNone     = "none"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and configures a snapshot backend.
type Config struct {
	Driver      string
	Path        string // directory for file, database file for sqlite
	DatabaseURL string // postgres only
}

// Open builds the Store described by cfg. The returned close func releases
// any connection the store holds and is never nil.
func Open(ctx context.Context, cfg Config) (Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case "", DriverNone:
		return Nop{}, noop, nil

	case DriverFile:
		s, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil

	case DriverSQLite:
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close() }, nil

	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, noop, fmt.Errorf("ping postgres: %w", err)
		}
		s, err := NewPostgresStore(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return s, pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown snapshot driver %q", cfg.Driver)
}
