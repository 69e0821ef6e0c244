package pipeline

import (
	"context"
	"time"

	"github.com/ignite/event-crm/internal/domain"
)

// Repository defines the data access contract for pipeline records.
// Implementations must be safe for concurrent use and must normalize stage
// names (domain.NormalizeStage) on read and on write.
type Repository interface {
	// Get returns a single record. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.PipelineRecord, error)

	// FindOne returns the record for key, or nil if there is none.
	FindOne(ctx context.Context, key domain.PipelineKey) (*domain.PipelineRecord, error)

	// Find returns records matching the filter, oldest first.
	Find(ctx context.Context, orgID string, filter ListFilter) ([]domain.PipelineRecord, error)

	// Create inserts a new record and assigns its ID. Returns
	// ErrAlreadyInPipeline if a record exists for the same key.
	Create(ctx context.Context, rec *domain.PipelineRecord) error

	// Update overwrites the mutable fields of an existing record. Returns
	// ErrNotFound if it doesn't exist.
	Update(ctx context.Context, rec *domain.PipelineRecord) error

	// ListByEventAndStage returns the event's records, optionally narrowed
	// to one audience type and/or stage (zero values match everything).
	ListByEventAndStage(ctx context.Context, orgID, eventID string, audienceType domain.AudienceType, stage domain.Stage) ([]domain.PipelineRecord, error)

	// CountByStage returns the number of records per stage for an event.
	CountByStage(ctx context.Context, orgID, eventID string) (map[domain.Stage]int, error)

	// ListUngraduated returns paid records across all organizations that
	// have no attendee record yet.
	ListUngraduated(ctx context.Context, limit int) ([]domain.PipelineRecord, error)
}

// ListFilter controls filtering and pagination for pipeline record lists.
type ListFilter struct {
	EventID      string
	ContactID    string
	AudienceType domain.AudienceType
	Stage        domain.Stage
	Limit        int
	Offset       int
}

// AttendeeRepository defines the data access contract for attendee records.
type AttendeeRepository interface {
	// FindByContact returns the attendee for (org, event, contact), or nil.
	FindByContact(ctx context.Context, orgID, eventID, contactID string) (*domain.AttendeeRecord, error)

	// Create inserts a new attendee and assigns its ID. Returns
	// ErrAttendeeExists if one exists for the same (org, event, contact).
	Create(ctx context.Context, a *domain.AttendeeRecord) error

	// Update overwrites the graduation-owned fields (paid, amount, payment
	// date, pipeline record id). It never touches attendance fields.
	Update(ctx context.Context, a *domain.AttendeeRecord) error

	// ListByEvent returns all attendees of an event.
	ListByEvent(ctx context.Context, orgID, eventID string) ([]domain.AttendeeRecord, error)

	// MarkAttended sets Attended and, if unset, AttendanceDate. Returns
	// ErrNotFound if the contact has not graduated for the event.
	MarkAttended(ctx context.Context, orgID, eventID, contactID string, at time.Time) error
}

// ContactStore is the read side of the contact store the pipeline needs.
type ContactStore interface {
	// FindByID returns the contact scoped to orgID, or nil if absent.
	FindByID(ctx context.Context, orgID, contactID string) (*domain.Contact, error)

	// FindAllByOrg returns every contact of the organization.
	FindAllByOrg(ctx context.Context, orgID string) ([]domain.Contact, error)

	// FindByTags returns contacts carrying any of tags.
	FindByTags(ctx context.Context, orgID string, tags []string) ([]domain.Contact, error)
}

// EventConfig resolves the funnel configuration of an event.
type EventConfig interface {
	// FindEvent returns the event, or nil if it does not exist.
	FindEvent(ctx context.Context, orgID, eventID string) (*domain.Event, error)
}

// Notifier receives graduation side effects. Implementations must not block
// the caller for long; failures are theirs to log.
type Notifier interface {
	AttendeeGraduated(ctx context.Context, a *domain.AttendeeRecord, created bool)
}

type nopNotifier struct{}

func (nopNotifier) AttendeeGraduated(context.Context, *domain.AttendeeRecord, bool) {}
