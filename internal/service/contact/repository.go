package contact

import (
	"context"

	"github.com/ignite/event-crm/internal/domain"
)

// Repository defines the data access contract for contacts.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single contact. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Contact, error)

	// FindByEmail returns the contact with the normalized email, or nil.
	FindByEmail(ctx context.Context, orgID, email string) (*domain.Contact, error)

	// List returns contacts matching the filter, ordered by created_at.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Contact, error)

	// Create inserts a new contact and assigns its ID. Returns
	// ErrDuplicateEmail if the email is taken.
	Create(ctx context.Context, c *domain.Contact) error

	// Update overwrites names, phone and tags. Returns ErrNotFound if the
	// contact doesn't exist.
	Update(ctx context.Context, c *domain.Contact) error
}

// ListFilter controls filtering and pagination for contact lists.
type ListFilter struct {
	Tag    string
	Limit  int
	Offset int
}
