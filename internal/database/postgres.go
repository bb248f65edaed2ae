package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	_ "github.com/lib/pq"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresDB stores JSON documents in per-collection tables:
// (id text primary key, seq bigserial, body jsonb, updated_at timestamptz).
type PostgresDB struct {
	DB *sql.DB
}

func NewPostgresDB(dsn string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return &PostgresDB{DB: db}, nil
}

func (p *PostgresDB) Close() error {
	return p.DB.Close()
}

// EnsureTable creates the document table if it does not exist yet
func (p *PostgresDB) EnsureTable(ctx context.Context, table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		body JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, table))
	return err
}

// Put inserts or replaces the document stored under id. seq keeps the first insert order.
func (p *PostgresDB) Put(ctx context.Context, table, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`, table), id, body)
	return err
}

// Get decodes the document stored under id into out; found is false when no row exists
func (p *PostgresDB) Get(ctx context.Context, table, id string, out any) (bool, error) {
	var body []byte
	err := p.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT body FROM %s WHERE id = $1`, table), id).Scan(&body)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(body, out)
}

// Delete removes the document stored under id
func (p *PostgresDB) Delete(ctx context.Context, table, id string) error {
	_, err := p.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	return err
}

// Each calls fn with every stored body in insertion order
func (p *PostgresDB) Each(ctx context.Context, table string, fn func(body []byte) error) error {
	rows, err := p.DB.QueryContext(ctx, fmt.Sprintf(`SELECT body FROM %s ORDER BY seq`, table))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return err
		}
		if err := fn(body); err != nil {
			return err
		}
	}
	return rows.Err()
}
