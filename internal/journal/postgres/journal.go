// Package postgres provides the Postgres-backed capture journal.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagevault/pagevault/internal/scrape"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for capture rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Journal writes one row per successful capture into Postgres.
type Journal struct {
	pool  execCloser
	table string
}

// New creates a Postgres-backed Journal using the provided config.
func New(ctx context.Context, cfg Config) (*Journal, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "captures"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Journal{pool: pool, table: table}, nil
}

// NewWithPool constructs a journal from an existing pool (primarily for
// testing).
func NewWithPool(pool execCloser, table string) (*Journal, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "captures"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Journal{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (j *Journal) Close() {
	if j == nil || j.pool == nil {
		return
	}
	j.pool.Close()
}

// Record inserts one capture row.
func (j *Journal) Record(ctx context.Context, record scrape.CaptureRecord) error {
	if j == nil || j.pool == nil {
		return fmt.Errorf("capture journal is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	task_name,
	target_url,
	solved_url,
	status_code,
	blob_uri,
	content_hash,
	content_size,
	user_agent,
	captured_at,
	duration_ms
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)`, j.table)

	args := []any{
		record.ID,
		record.TaskName,
		record.TargetURL,
		record.SolvedURL,
		record.StatusCode,
		record.BlobURI,
		record.ContentHash,
		record.ContentSize,
		record.UserAgent,
		record.CapturedAt,
		record.DurationMs,
	}
	if _, err := j.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}
	return nil
}
