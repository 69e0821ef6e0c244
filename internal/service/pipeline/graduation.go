package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// Graduate promotes a paid pipeline record into the event's attendee
// roster. It returns nil, nil when the record does not exist or is not
// paid. Calling it repeatedly for the same record is safe: the attendee is
// found and updated instead of duplicated.
func (s *Service) Graduate(ctx context.Context, orgID, pipelineRecordID string) (*domain.AttendeeRecord, error) {
	rec, err := s.records.Get(ctx, orgID, pipelineRecordID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("get pipeline record", err)
	}
	return s.graduateRecord(ctx, rec)
}

func (s *Service) graduateRecord(ctx context.Context, rec *domain.PipelineRecord) (*domain.AttendeeRecord, error) {
	if rec == nil || !rec.IsPaid() {
		return nil, nil
	}

	existing, err := s.attendees.FindByContact(ctx, rec.OrganizationID, rec.EventID, rec.ContactID)
	if err != nil {
		graduationsTotal.WithLabelValues("error").Inc()
		return nil, persistence("find attendee", err)
	}

	if existing == nil {
		a := newAttendee(rec, s.now())
		err := s.attendees.Create(ctx, a)
		if err == nil {
			graduationsTotal.WithLabelValues("created").Inc()
			logger.Info("attendee graduated",
				"attendee_id", a.ID,
				"pipeline_id", rec.ID,
				"event_id", rec.EventID,
			)
			s.notifier.AttendeeGraduated(ctx, a, true)
			return a, nil
		}
		if !errors.Is(err, ErrAttendeeExists) {
			graduationsTotal.WithLabelValues("error").Inc()
			return nil, persistence("create attendee", err)
		}

		// A concurrent graduation created it first; update that one.
		existing, err = s.attendees.FindByContact(ctx, rec.OrganizationID, rec.EventID, rec.ContactID)
		if err != nil {
			graduationsTotal.WithLabelValues("error").Inc()
			return nil, persistence("find attendee", err)
		}
		if existing == nil {
			graduationsTotal.WithLabelValues("error").Inc()
			return nil, persistence("create attendee", fmt.Errorf("attendee for contact %s missing after conflict", rec.ContactID))
		}
	}

	applyGraduation(existing, rec, s.now())
	if err := s.attendees.Update(ctx, existing); err != nil {
		graduationsTotal.WithLabelValues("error").Inc()
		return nil, persistence("update attendee", err)
	}
	graduationsTotal.WithLabelValues("updated").Inc()
	s.notifier.AttendeeGraduated(ctx, existing, false)
	return existing, nil
}

func newAttendee(rec *domain.PipelineRecord, now time.Time) *domain.AttendeeRecord {
	return &domain.AttendeeRecord{
		OrganizationID:   rec.OrganizationID,
		EventID:          rec.EventID,
		ContactID:        rec.ContactID,
		PipelineRecordID: rec.ID,
		AudienceType:     rec.AudienceType,
		Paid:             true,
		Amount:           rec.Amount,
		PaymentDate:      rec.PaymentDate,
		Attended:         false,
		Source:           rec.Source,
		EngagementScore:  rec.EngagementScore,
		Tags:             append([]string(nil), rec.Tags...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// applyGraduation refreshes an existing attendee from a paid record. Only
// the record the attendee is linked to may overwrite the payment fields;
// another paid record for the same contact, such as one in a second
// audience, only fills fields that are still empty. Paid only moves from
// false to true and attendance is left alone.
func applyGraduation(a *domain.AttendeeRecord, rec *domain.PipelineRecord, now time.Time) {
	a.Paid = a.Paid || rec.IsPaid()
	if a.PipelineRecordID == "" {
		a.PipelineRecordID = rec.ID
	}
	if rec.ID == a.PipelineRecordID {
		a.Amount = rec.Amount
		if rec.PaymentDate != nil {
			a.PaymentDate = rec.PaymentDate
		}
	} else {
		if a.Amount == 0 {
			a.Amount = rec.Amount
		}
		if a.PaymentDate == nil {
			a.PaymentDate = rec.PaymentDate
		}
	}
	a.UpdatedAt = now
}

// GraduatePending graduates up to limit paid records that have no attendee
// yet, across all organizations. Per-record failures are logged and do not
// stop the batch. It returns the number of records graduated.
func (s *Service) GraduatePending(ctx context.Context, limit int) (int, error) {
	recs, err := s.records.ListUngraduated(ctx, limit)
	if err != nil {
		return 0, persistence("list ungraduated records", err)
	}

	graduated := 0
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return graduated, err
		}
		a, err := s.graduateRecord(ctx, &recs[i])
		if err != nil {
			logger.Error("pending graduation failed",
				"pipeline_id", recs[i].ID,
				"error", err,
			)
			continue
		}
		if a != nil {
			graduated++
		}
	}
	return graduated, nil
}
