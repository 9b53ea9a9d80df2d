package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresKV persists key-value pairs in a Postgres table, for deployments
// that want the bridge's state machine backed by a managed relational
// database instead of an embedded KV engine. Grounded on the teacher's
// database.Client connection-pool setup, narrowed to a single kv_store
// table instead of the teacher's domain-specific repositories.
type PostgresKV struct {
	db     *sql.DB
	logger *log.Logger
}

// PostgresConfig configures the connection pool.
type PostgresConfig struct {
	DatabaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// NewPostgresKV opens a pooled connection and verifies it with a ping.
func NewPostgresKV(cfg PostgresConfig, logger *log.Logger) (*PostgresKV, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("storage: database URL cannot be empty")
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PostgresKV] ", log.LstdFlags)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: failed to ensure kv_store table: %w", err)
	}

	logger.Printf("connected to postgres kv store (max_conns=%d)", cfg.MaxOpenConns)
	return &PostgresKV{db: db, logger: logger}, nil
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
	key   BYTEA PRIMARY KEY,
	value BYTEA NOT NULL
)`

func (p *PostgresKV) Get(key []byte) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(`SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *PostgresKV) Set(key, value []byte) error {
	_, err := p.db.Exec(`
		INSERT INTO kv_store (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (p *PostgresKV) Delete(key []byte) error {
	_, err := p.db.Exec(`DELETE FROM kv_store WHERE key = $1`, key)
	return err
}

// Close releases the underlying connection pool.
func (p *PostgresKV) Close() error {
	return p.db.Close()
}
