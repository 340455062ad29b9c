package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"todoapi/internal/config"
	"todoapi/internal/migrations"
	"todoapi/internal/repo"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/juju/clock"
)

// Store is an opened storage backend. DB is the database/sql handle used for
// migrations; for postgres it shares the pgx pool.
type Store struct {
	Todos    repo.TodoRepo
	Comments repo.CommentRepo
	DB       *sql.DB
	Dialect  string

	pool *pgxpool.Pool
}

// OpenStore connects to the configured backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig, clk clock.Clock) (*Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := newPostgres(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return &Store{
			Todos:    repo.NewPGTodoRepo(pool),
			Comments: repo.NewPGCommentRepo(pool, clk),
			DB:       stdlib.OpenDBFromPool(pool),
			Dialect:  migrations.Postgres,
			pool:     pool,
		}, nil
	case config.DriverSQLite:
		db, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Store{
			Todos:    repo.NewSQLiteTodoRepo(db),
			Comments: repo.NewSQLiteCommentRepo(db, clk),
			DB:       db,
			Dialect:  migrations.SQLite,
		}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Ping checks the backend is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	return s.DB.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.DB.Close()
	if s.pool != nil {
		s.pool.Close()
	}
}

func newPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}
	return pool, nil
}
