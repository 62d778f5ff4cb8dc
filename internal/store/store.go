// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists articles, asset records and scheduler state in
// SQLite (default) or PostgreSQL. Asset changes and the article flags that
// summarize them are written in one transaction.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Store is the article/asset store.
type Store struct {
	db     *sql.DB
	driver types.StoreDriver
	sb     sq.StatementBuilderType
}

// Open connects to the configured database and creates the schema if it
// does not exist. For sqlite3 the DSN is a file path whose directory is
// created on demand.
func Open(ctx context.Context, cfg types.StoreConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = types.DriverSQLite
	}

	var (
		db  *sql.DB
		err error
		ph  sq.PlaceholderFormat
	)
	switch driver {
	case types.DriverSQLite:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("store: sqlite3 DSN (database path) is required")
		}
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, ":memory:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err = sql.Open("sqlite3", cfg.DSN+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
		if err == nil {
			// One connection serializes writers and avoids SQLITE_BUSY.
			db.SetMaxOpenConns(1)
		}
		ph = sq.Question
	case types.DriverPostgres:
		db, err = sql.Open("pgx", cfg.DSN)
		ph = sq.Dollar
	default:
		return nil, fmt.Errorf("store: unknown driver %q (want sqlite3 or pgx)", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:     db,
		driver: driver,
		sb:     sq.StatementBuilder.PlaceholderFormat(ph),
	}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			slug TEXT NOT NULL,
			title TEXT NOT NULL,
			seo_title TEXT NOT NULL DEFAULT '',
			seo_description TEXT NOT NULL DEFAULT '',
			excerpt TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			category TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT '[]',
			external_link TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			has_hero_image INTEGER NOT NULL DEFAULT 0,
			infographic_count INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status)`,
		`CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			article_id TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			pattern TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			mime_type TEXT NOT NULL,
			path TEXT NOT NULL,
			bytes BIGINT NOT NULL,
			backend TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			superseded_by TEXT NOT NULL DEFAULT '',
			superseded_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_live ON assets(article_id, type, superseded_by)`,
		`CREATE TABLE IF NOT EXISTS scheduler_state (
			name TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func exec(ctx context.Context, e execer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return e.ExecContext(ctx, query, args...)
}

func query(ctx context.Context, e execer, b sq.Sqlizer) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return e.QueryContext(ctx, q, args...)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}
