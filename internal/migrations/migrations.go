// Package migrations holds the schema for both storage backends and runs it
// through goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect names accepted by Up and Status. They match config.StoreConfig.Driver.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

func newProvider(db *sql.DB, dialect string) (*goose.Provider, error) {
	var d goose.Dialect
	switch dialect {
	case Postgres:
		d = goose.DialectPostgres
	case SQLite:
		d = goose.DialectSQLite3
	default:
		return nil, fmt.Errorf("unknown migration dialect %q", dialect)
	}
	sub, err := fs.Sub(files, dialect)
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	p, err := goose.NewProvider(d, db, sub)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return p, nil
}

// Up applies all pending migrations and returns the resulting schema version.
func Up(ctx context.Context, db *sql.DB, dialect string) (int64, error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return 0, err
	}
	if _, err := p.Up(ctx); err != nil {
		return 0, fmt.Errorf("goose up: %w", err)
	}
	v, err := p.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose version: %w", err)
	}
	return v, nil
}

// Status reports the applied version and whether migrations are pending.
func Status(ctx context.Context, db *sql.DB, dialect string) (current int64, pending bool, err error) {
	p, err := newProvider(db, dialect)
	if err != nil {
		return 0, false, err
	}
	current, err = p.GetDBVersion(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("goose version: %w", err)
	}
	pending, err = p.HasPending(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("goose pending: %w", err)
	}
	return current, pending, nil
}
