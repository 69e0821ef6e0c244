package event

import (
	"context"

	"github.com/ignite/event-crm/internal/domain"
)

// Repository defines the data access contract for events.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single event. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Event, error)

	// List returns the organization's events, newest first.
	List(ctx context.Context, orgID string) ([]domain.Event, error)

	// Create inserts a new event and assigns its ID.
	Create(ctx context.Context, e *domain.Event) error

	// UpdateStages replaces the event's stage list. Returns ErrNotFound if
	// the event doesn't exist.
	UpdateStages(ctx context.Context, orgID, id string, stages []domain.Stage) error
}

// Cache stores events by (organization, id). A miss returns nil, nil.
type Cache interface {
	Get(ctx context.Context, orgID, id string) (*domain.Event, error)
	Set(ctx context.Context, e *domain.Event) error
	Invalidate(ctx context.Context, orgID, id string) error
}
