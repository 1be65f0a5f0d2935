package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/shikigami/pkg/domain/interfaces"
	"github.com/m-mizutani/shikigami/pkg/domain/types/apperr"
	_ "modernc.org/sqlite" // Register "sqlite" driver
)

// Client is a SQLite implementation of interfaces.Repository. Rows keep the
// full record as JSON next to the columns used for filtering.
type Client struct {
	db   *sql.DB
	path string
}

var _ interfaces.Repository = (*Client)(nil)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS prompt_configs (
		agent_id   TEXT PRIMARY KEY,
		version    INTEGER NOT NULL,
		data       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS prompt_versions (
		agent_id   TEXT NOT NULL,
		version    INTEGER NOT NULL,
		data       TEXT NOT NULL,
		PRIMARY KEY (agent_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS executions (
		id         TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL,
		status     TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		data       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS executions_agent_started ON executions (agent_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id           TEXT PRIMARY KEY,
		agent_id     TEXT NOT NULL,
		execution_id TEXT NOT NULL,
		created_at   INTEGER NOT NULL,
		data         TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS feedback_agent_created ON feedback (agent_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS feedback_execution ON feedback (execution_id)`,
	`CREATE TABLE IF NOT EXISTS test_cases (
		id         TEXT PRIMARY KEY,
		agent_id   TEXT NOT NULL,
		active     INTEGER NOT NULL,
		data       TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS test_runs (
		id             TEXT PRIMARY KEY,
		agent_id       TEXT NOT NULL,
		prompt_version INTEGER NOT NULL,
		created_at     INTEGER NOT NULL,
		data           TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memories (
		id               TEXT PRIMARY KEY,
		agent_id         TEXT NOT NULL,
		campaign_id      TEXT NOT NULL,
		artist_name      TEXT NOT NULL,
		memory_type      TEXT NOT NULL,
		key              TEXT NOT NULL,
		importance       REAL NOT NULL,
		last_accessed_at INTEGER NOT NULL,
		expires_at       INTEGER,
		data             TEXT NOT NULL,
		UNIQUE (agent_id, campaign_id, artist_name, key)
	)`,
	`CREATE INDEX IF NOT EXISTS memories_expires ON memories (expires_at)`,
}

// New opens (and creates if needed) a SQLite database at path
func New(ctx context.Context, path string) (*Client, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database",
			goerr.T(apperr.ErrTagSQLite), goerr.V("path", path))
	}
	// A single connection serializes writers and keeps transactions simple
	db.SetMaxOpenConns(1)

	c := &Client{db: db, path: path}
	if err := c.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the database
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Client) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return goerr.Wrap(err, "failed to migrate sqlite schema",
				goerr.T(apperr.ErrTagSQLite), goerr.V("path", c.path))
		}
	}
	return nil
}

// withTx runs fn in a transaction and commits when it returns nil
func (c *Client) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction", goerr.T(apperr.ErrTagSQLite))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit transaction", goerr.T(apperr.ErrTagSQLite))
	}
	return nil
}

func encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode row")
	}
	return string(raw), nil
}

func decode[T any](data string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, goerr.Wrap(err, "failed to decode row", goerr.T(apperr.ErrTagSQLite))
	}
	return &v, nil
}

// scanAll decodes the single data column of every row
func scanAll[T any](rows *sql.Rows) ([]*T, error) {
	defer rows.Close()

	var result []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, goerr.Wrap(err, "failed to scan row", goerr.T(apperr.ErrTagSQLite))
		}
		v, err := decode[T](data)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate rows", goerr.T(apperr.ErrTagSQLite))
	}
	return result, nil
}

func unixNano(t time.Time) int64 {
	return t.UnixNano()
}
