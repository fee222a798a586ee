package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	findQuery: `SELECT id, source_id, raw_text, user_id, status, meta, created_at
		FROM posts WHERE source_id = ?`,
	insertQuery: `INSERT INTO posts (id, source_id, raw_text, user_id, status, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	clientIDs: true,
	isDuplicate: func(err error) bool {
		var sqliteErr sqlite3.Error
		return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	},
	schema: []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id         TEXT PRIMARY KEY,
			source_id  TEXT NOT NULL UNIQUE,
			raw_text   TEXT NOT NULL,
			user_id    TEXT NOT NULL,
			status     TEXT NOT NULL DEFAULT 'PENDING',
			meta       TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS posts_user_id_idx ON posts (user_id)`,
	},
}

type SQLiteOptions struct {
	// Path is a file path or a sqlite3 DSN such as file::memory:?cache=shared.
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// OpenSQLite opens the database at opts.Path.
func OpenSQLite(ctx context.Context, opts SQLiteOptions) (*SQLPostStore, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("sqlite store requires a path")
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY under concurrent inserts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return newSQLPostStore(db, sqliteDialect), nil
}
