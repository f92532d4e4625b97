package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const DefaultPostgresTable = "key_values"

// Postgres keeps one row per key.
type Postgres struct {
	db           *sql.DB
	table        string
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func NewPostgres(db *sql.DB, table string, readTimeout, writeTimeout time.Duration) *Postgres {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &Postgres{
		db:           db,
		table:        pq.QuoteIdentifier(table),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// EnsureSchema creates the backing table if it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, p.writeTimeout)
	defer cancel()

	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, p.table)
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", p.table, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.readTimeout)
	defer cancel()

	var value string
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, p.table)
	err := p.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to select key %q: %w", key, err)
	}
	return value, nil
}

func (p *Postgres) Set(ctx context.Context, key, value string) error {
	ctx, cancel := withTimeout(ctx, p.writeTimeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, p.table)
	if _, err := p.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to upsert key %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, p.readTimeout)
	defer cancel()
	return p.db.PingContext(ctx)
}

// Close is a no-op; the shared *sql.DB is closed by its owner.
func (p *Postgres) Close() error {
	return nil
}
