package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// SQLSTATE unique_violation
const pgUniqueViolation = "23505"

var postgresDialect = dialect{
	name: "postgres",
	findQuery: `SELECT id, source_id, raw_text, user_id, status, meta, created_at
		FROM posts WHERE source_id = $1`,
	insertQuery: `INSERT INTO posts (source_id, raw_text, user_id, status, meta)
		VALUES ($1, $2, $3, $4, $5::jsonb) RETURNING id`,
	isDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			source_id  TEXT NOT NULL UNIQUE,
			raw_text   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'PENDING',
			meta       JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS posts_user_id_idx ON posts (user_id)`,
	},
}

type PostgresOptions struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

func (o *PostgresOptions) setDefaults() {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 10
	}
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.ConnMaxLifetime == 0 {
		o.ConnMaxLifetime = time.Hour
	}
}

// OpenPostgres connects to PostgreSQL and verifies the connection.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*SQLPostStore, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("postgres store requires a dsn")
	}
	opts.setDefaults()

	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return NewPostgresPostStore(db), nil
}

// NewPostgresPostStore wraps an open PostgreSQL pool.
func NewPostgresPostStore(db *sql.DB) *SQLPostStore {
	return newSQLPostStore(db, postgresDialect)
}
