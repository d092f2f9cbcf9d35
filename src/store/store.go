// Package store defines the data-access contract between the service and the
// backend that owns the open_positions, closed_positions and user_metrics tables.
package store

import (
	"context"
	"errors"

	"copyinvest/src/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned by single-row verbs when no row matches.
var ErrNotFound = errors.New("record not found")

// PositionReader selects position rows for a user.
type PositionReader interface {
	OpenPositions(ctx context.Context, userID uuid.UUID) ([]model.OpenPosition, error)
	ClosedPositions(ctx context.Context, userID uuid.UUID) ([]model.ClosedPosition, error)
}

// MetricsStore reads and upserts the user_metrics projection.
type MetricsStore interface {
	// UserMetrics returns nil, nil when the user has no metrics row yet.
	UserMetrics(ctx context.Context, userID uuid.UUID) (*model.UserMetrics, error)
	// UpsertUserMetrics inserts or replaces the row keyed by user_id.
	UpsertUserMetrics(ctx context.Context, m *model.UserMetrics) error
}

// PositionWriter mutates position rows.
type PositionWriter interface {
	OpenPosition(ctx context.Context, id uuid.UUID) (*model.OpenPosition, error)
	InsertOpenPosition(ctx context.Context, p *model.OpenPosition) error
	UpdateOpenPosition(ctx context.Context, p *model.OpenPosition) error
	DeleteOpenPosition(ctx context.Context, id uuid.UUID) error
	InsertClosedPosition(ctx context.Context, p *model.ClosedPosition) error
	DeleteClosedPosition(ctx context.Context, userID, id uuid.UUID) error
}

// Store is the full backend contract.
type Store interface {
	PositionReader
	PositionWriter
	MetricsStore
}
