package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists plate query records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table if it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS plate_queries (
			id             UUID PRIMARY KEY,
			session_id     UUID NOT NULL,
			plate          TEXT NOT NULL,
			original_input TEXT NOT NULL,
			source         TEXT NOT NULL,
			success        BOOLEAN NOT NULL,
			from_cache     BOOLEAN NOT NULL,
			elapsed_ms     BIGINT NOT NULL,
			error_message  TEXT NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS plate_queries_session_idx ON plate_queries (session_id);
		CREATE INDEX IF NOT EXISTS plate_queries_created_idx ON plate_queries (created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Append inserts the record, assigning an ID when absent.
func (s *PostgresStore) Append(ctx context.Context, record *PlateQuery) error {
	if record == nil {
		return fmt.Errorf("audit record is required")
	}
	id := record.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO plate_queries (
			id, session_id, plate, original_input, source,
			success, from_cache, elapsed_ms, error_message, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		id,
		record.SessionID,
		record.Plate,
		record.OriginalInput,
		record.Source,
		record.Success,
		record.FromCache,
		record.ElapsedMs,
		record.ErrorMessage,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plate query: %w", err)
	}
	return nil
}

// FindBySession returns the record for the session or ErrNotFound.
func (s *PostgresStore) FindBySession(ctx context.Context, sessionID uuid.UUID) (*PlateQuery, error) {
	query := `
		SELECT id, session_id, plate, original_input, source,
			   success, from_cache, elapsed_ms, error_message, created_at
		FROM plate_queries
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, sessionID)

	var record PlateQuery
	err := row.Scan(
		&record.ID,
		&record.SessionID,
		&record.Plate,
		&record.OriginalInput,
		&record.Source,
		&record.Success,
		&record.FromCache,
		&record.ElapsedMs,
		&record.ErrorMessage,
		&record.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find plate query: %w", err)
	}
	return &record, nil
}

// ListRecent returns up to limit records, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*PlateQuery, error) {
	query := `
		SELECT id, session_id, plate, original_input, source,
			   success, from_cache, elapsed_ms, error_message, created_at
		FROM plate_queries
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list plate queries: %w", err)
	}
	defer rows.Close()

	var records []*PlateQuery
	for rows.Next() {
		var record PlateQuery
		err := rows.Scan(
			&record.ID,
			&record.SessionID,
			&record.Plate,
			&record.OriginalInput,
			&record.Source,
			&record.Success,
			&record.FromCache,
			&record.ElapsedMs,
			&record.ErrorMessage,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan plate query: %w", err)
		}
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plate queries: %w", err)
	}
	return records, nil
}
