package memory

import (
	"context"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// AttendeeRepo implements pipeline.AttendeeRepository.
type AttendeeRepo struct{ s *Store }

func copyAttendee(a *domain.AttendeeRecord) *domain.AttendeeRecord {
	cp := *a
	cp.Tags = cloneStrings(a.Tags)
	return &cp
}

func (s *Store) findAttendeeLocked(orgID, eventID, contactID string) *domain.AttendeeRecord {
	for _, id := range s.attendeeOrder {
		a := s.attendees[id]
		if a.OrganizationID == orgID && a.EventID == eventID && a.ContactID == contactID {
			return a
		}
	}
	return nil
}

func (s *Store) hasAttendeeLocked(orgID, eventID, contactID string) bool {
	return s.findAttendeeLocked(orgID, eventID, contactID) != nil
}

func (r *AttendeeRepo) FindByContact(_ context.Context, orgID, eventID, contactID string) (*domain.AttendeeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if a := r.s.findAttendeeLocked(orgID, eventID, contactID); a != nil {
		return copyAttendee(a), nil
	}
	return nil, nil
}

func (r *AttendeeRepo) Create(_ context.Context, a *domain.AttendeeRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.hasAttendeeLocked(a.OrganizationID, a.EventID, a.ContactID) {
		return pipeline.ErrAttendeeExists
	}
	a.ID = newID(a.ID)
	r.s.attendees[a.ID] = copyAttendee(a)
	r.s.attendeeOrder = append(r.s.attendeeOrder, a.ID)
	return nil
}

func (r *AttendeeRepo) Update(_ context.Context, a *domain.AttendeeRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.attendees[a.ID]
	if !ok || existing.OrganizationID != a.OrganizationID {
		return pipeline.ErrNotFound
	}
	existing.PipelineRecordID = a.PipelineRecordID
	existing.Paid = a.Paid
	existing.Amount = a.Amount
	existing.PaymentDate = a.PaymentDate
	existing.UpdatedAt = a.UpdatedAt
	return nil
}

func (r *AttendeeRepo) ListByEvent(_ context.Context, orgID, eventID string) ([]domain.AttendeeRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.AttendeeRecord{}
	for _, id := range r.s.attendeeOrder {
		a := r.s.attendees[id]
		if a.OrganizationID == orgID && a.EventID == eventID {
			out = append(out, *copyAttendee(a))
		}
	}
	return out, nil
}

func (r *AttendeeRepo) MarkAttended(_ context.Context, orgID, eventID, contactID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a := r.s.findAttendeeLocked(orgID, eventID, contactID)
	if a == nil {
		return pipeline.ErrNotFound
	}
	a.Attended = true
	if a.AttendanceDate == nil {
		a.AttendanceDate = &at
	}
	a.UpdatedAt = at
	return nil
}
