// Package audit keeps the per-attempt query log. One record is written for
// every top-level plate query, successful or not.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no record matches the session.
var ErrNotFound = errors.New("audit: record not found")

// PlateQuery is the immutable audit record for one query attempt.
type PlateQuery struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"sessionId"`
	Plate         string    `json:"plate"`
	OriginalInput string    `json:"originalInput"`
	Source        string    `json:"source"`
	Success       bool      `json:"success"`
	FromCache     bool      `json:"fromCache"`
	ElapsedMs     int64     `json:"elapsedMs"`
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store persists plate query records.
type Store interface {
	Append(ctx context.Context, record *PlateQuery) error
	FindBySession(ctx context.Context, sessionID uuid.UUID) (*PlateQuery, error)
	ListRecent(ctx context.Context, limit int) ([]*PlateQuery, error)
}
