package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/cypherlabdev/bookshop-service/internal/models"
)

// DB is the subset of *pgxpool.Pool the store needs
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Schema creates the single jsonb table every resource is kept in
const Schema = `
	CREATE TABLE IF NOT EXISTS records (
		tbl        TEXT        NOT NULL,
		id         TEXT        NOT NULL,
		data       JSONB       NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (tbl, id)
	)
`

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     DB
	logger zerolog.Logger
}

// NewPostgresStore creates a new PostgreSQL record store
func NewPostgresStore(db DB, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger.With().Str("component", "postgres_store").Logger(),
	}
}

// ConnectPostgres opens a pool and makes sure the schema exists
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return pool, nil
}

// Get retrieves a record by table and id
func (s *PostgresStore) Get(ctx context.Context, table, id string) (models.Fields, bool, error) {
	query := `SELECT data FROM records WHERE tbl = $1 AND id = $2`

	var raw []byte
	err := s.db.QueryRow(ctx, query, table, id).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s/%s: %w", table, id, err)
	}

	var record models.Fields
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, false, fmt.Errorf("failed to decode %s/%s: %w", table, id, err)
	}
	return record, true, nil
}

// Put upserts a record
func (s *PostgresStore) Put(ctx context.Context, table, id string, record models.Fields) error {
	if id == "" {
		return ErrEmptyID
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", table, id, err)
	}

	query := `
		INSERT INTO records (tbl, id, data, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tbl, id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := s.db.Exec(ctx, query, table, id, raw); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", table, id, err)
	}

	s.logger.Debug().Str("table", table).Str("id", id).Msg("record stored")
	return nil
}

// Delete removes a record
func (s *PostgresStore) Delete(ctx context.Context, table, id string) error {
	query := `DELETE FROM records WHERE tbl = $1 AND id = $2`

	if _, err := s.db.Exec(ctx, query, table, id); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, id, err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
