package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresKV keeps checkpoints in a single key/value table. The schema is
// created lazily on first use.
type PostgresKV struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresKV(dsn string) (*PostgresKV, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresKV{db: db}, nil
}

func (p *PostgresKV) ensureSchema(ctx context.Context) error {
	p.schemaOnce.Do(func() {
		_, p.schemaErr = p.db.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS draftforge_checkpoints (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
	})
	return p.schemaErr
}

func (p *PostgresKV) Get(ctx context.Context, key string) (string, bool, error) {
	if err := p.ensureSchema(ctx); err != nil {
		return "", false, err
	}
	var value string
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM draftforge_checkpoints WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (p *PostgresKV) Set(ctx context.Context, key, value string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO draftforge_checkpoints (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	return err
}

func (p *PostgresKV) Remove(ctx context.Context, key string) error {
	if err := p.ensureSchema(ctx); err != nil {
		return err
	}
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM draftforge_checkpoints WHERE key = $1`, key)
	return err
}

func (p *PostgresKV) Close() error { return p.db.Close() }
