package memory

import (
	"context"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/event"
)

// EventRepo implements event.Repository.
type EventRepo struct{ s *Store }

func copyEvent(e *domain.Event) *domain.Event {
	cp := *e
	cp.Stages = append([]domain.Stage{}, e.Stages...)
	cp.AudienceTypes = append([]domain.AudienceType{}, e.AudienceTypes...)
	return &cp
}

func (r *EventRepo) Get(_ context.Context, orgID, id string) (*domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.events[id]
	if !ok || e.OrganizationID != orgID {
		return nil, event.ErrNotFound
	}
	return copyEvent(e), nil
}

func (r *EventRepo) List(_ context.Context, orgID string) ([]domain.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Event{}
	for i := len(r.s.eventOrder) - 1; i >= 0; i-- {
		e := r.s.events[r.s.eventOrder[i]]
		if e.OrganizationID == orgID {
			out = append(out, *copyEvent(e))
		}
	}
	return out, nil
}

func (r *EventRepo) Create(_ context.Context, e *domain.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = newID(e.ID)
	r.s.events[e.ID] = copyEvent(e)
	r.s.eventOrder = append(r.s.eventOrder, e.ID)
	return nil
}

func (r *EventRepo) UpdateStages(_ context.Context, orgID, id string, stages []domain.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.events[id]
	if !ok || e.OrganizationID != orgID {
		return event.ErrNotFound
	}
	e.Stages = append([]domain.Stage{}, stages...)
	return nil
}
