// Package memory provides in-process implementations of the repository
// interfaces. It backs the server when no database is configured and the
// service tests.
package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/ignite/event-crm/internal/domain"
)

// Store holds every collection behind one lock so cross-collection reads
// (ungraduated records) see a consistent view.
type Store struct {
	mu sync.RWMutex

	contacts      map[string]*domain.Contact
	contactOrder  []string
	events        map[string]*domain.Event
	eventOrder    []string
	pipeline      map[string]*domain.PipelineRecord
	pipelineOrder []string
	attendees     map[string]*domain.AttendeeRecord
	attendeeOrder []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		contacts:  make(map[string]*domain.Contact),
		events:    make(map[string]*domain.Event),
		pipeline:  make(map[string]*domain.PipelineRecord),
		attendees: make(map[string]*domain.AttendeeRecord),
	}
}

// Contacts returns the contact repository view.
func (s *Store) Contacts() *ContactRepo { return &ContactRepo{s: s} }

// Events returns the event repository view.
func (s *Store) Events() *EventRepo { return &EventRepo{s: s} }

// Pipeline returns the pipeline record repository view.
func (s *Store) Pipeline() *PipelineRepo { return &PipelineRepo{s: s} }

// Attendees returns the attendee repository view.
func (s *Store) Attendees() *AttendeeRepo { return &AttendeeRepo{s: s} }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return []T{}
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}
