package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// TransitionExtra carries optional data for a stage change.
type TransitionExtra struct {
	// Amount is the payment amount recorded when entering the paid stage.
	Amount *float64
}

// TransitionResult is the outcome of a stage change or patch. Attendee is
// set when the resulting record is paid and graduation ran.
type TransitionResult struct {
	Record    *domain.PipelineRecord `json:"record"`
	Attendee  *domain.AttendeeRecord `json:"attendee,omitempty"`
	Graduated bool                   `json:"graduated"`
}

// ApplyStage moves rec to target and derives the dependent fields. It is a
// pure function: rec is taken by value and returned unchanged together with
// an *InvalidStageError when target is not in allowed.
//
// Entering rsvped sets RSVP and RSVPDate; entering paid sets Paid,
// PaymentDate and, when supplied, Amount. Dates already set are kept. Moving
// to an earlier stage never clears RSVP or Paid.
func ApplyStage(rec domain.PipelineRecord, target string, allowed []domain.Stage, extra TransitionExtra, now time.Time) (domain.PipelineRecord, error) {
	st := domain.NormalizeStage(target)
	if st == "" || !domain.ContainsStage(allowed, st) {
		return rec, &InvalidStageError{Stage: target, Allowed: domain.StageStrings(allowed)}
	}

	rec.Stage = st
	switch st {
	case domain.StageRSVPed:
		markRSVP(&rec, now)
	case domain.StagePaid:
		rec.Paid = true
		if rec.PaymentDate == nil {
			t := now
			rec.PaymentDate = &t
		}
		if extra.Amount != nil {
			rec.Amount = *extra.Amount
		}
	}
	return rec, nil
}

func markRSVP(rec *domain.PipelineRecord, now time.Time) {
	rec.RSVP = true
	if rec.RSVPDate == nil {
		t := now
		rec.RSVPDate = &t
	}
}

// Transition applies a stage change to one record and persists it. Entering
// paid graduates the record. If graduation fails after the record was
// saved, the saved record is returned together with the error; the
// graduation reconciler retries it later.
func (s *Service) Transition(ctx context.Context, orgID, recordID, target string, extra TransitionExtra) (*TransitionResult, error) {
	rec, err := s.Get(ctx, orgID, recordID)
	if err != nil {
		return nil, err
	}
	_, stages, _, err := s.eventFunnel(ctx, orgID, rec.EventID)
	if err != nil {
		return nil, err
	}

	updated, err := ApplyStage(*rec, target, stages, extra, s.now())
	if err != nil {
		transitionsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	transitionsTotal.WithLabelValues(stageLabel(updated.Stage)).Inc()

	logger.Info("pipeline stage changed",
		"pipeline_id", updated.ID,
		"event_id", updated.EventID,
		"from", rec.Stage,
		"to", updated.Stage,
	)

	res := &TransitionResult{Record: &updated}
	if updated.Stage == domain.StagePaid {
		return s.graduateInto(ctx, res)
	}
	return res, nil
}

// PatchInput holds the optional fields of a pipeline record update. Nil
// fields are left alone.
type PatchInput struct {
	Stage *string
	// RSVP explicitly sets or clears the RSVP flag. Clearing also clears
	// RSVPDate; this is the only path that clears a flag.
	RSVP            *bool
	Tags            *[]string
	Amount          *float64
	Notes           *domain.PipelineNotes
	EngagementScore *int
}

// Patch applies an update to one record. A stage change goes through
// ApplyStage; the explicit RSVP flag and amount are applied after it. A paid
// record is graduated again only when its stage, paid flag or amount
// changed.
func (s *Service) Patch(ctx context.Context, orgID, recordID string, in PatchInput) (*TransitionResult, error) {
	rec, err := s.Get(ctx, orgID, recordID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated := *rec
	if in.Stage != nil {
		_, stages, _, err := s.eventFunnel(ctx, orgID, rec.EventID)
		if err != nil {
			return nil, err
		}
		updated, err = ApplyStage(updated, *in.Stage, stages, TransitionExtra{}, now)
		if err != nil {
			transitionsTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
	}
	if in.Amount != nil {
		updated.Amount = *in.Amount
	}

	if in.RSVP != nil {
		if *in.RSVP {
			markRSVP(&updated, now)
		} else {
			updated.RSVP = false
			updated.RSVPDate = nil
		}
	}
	if in.Tags != nil {
		updated.Tags = domain.NormalizeTags(*in.Tags)
	}
	if in.Notes != nil {
		updated.Notes = *in.Notes
	}
	if in.EngagementScore != nil {
		updated.EngagementScore = *in.EngagementScore
	}

	if err := s.save(ctx, &updated); err != nil {
		return nil, err
	}
	if updated.Stage != rec.Stage {
		transitionsTotal.WithLabelValues(stageLabel(updated.Stage)).Inc()
	}

	res := &TransitionResult{Record: &updated}
	if updated.IsPaid() && paymentChanged(rec, &updated) {
		return s.graduateInto(ctx, res)
	}
	return res, nil
}

func paymentChanged(before, after *domain.PipelineRecord) bool {
	return before.Stage != after.Stage ||
		before.Paid != after.Paid ||
		before.Amount != after.Amount
}

func (s *Service) graduateInto(ctx context.Context, res *TransitionResult) (*TransitionResult, error) {
	a, err := s.graduateRecord(ctx, res.Record)
	if err != nil {
		logger.Warn("graduation after stage change failed",
			"pipeline_id", res.Record.ID,
			"error", err,
		)
		return res, err
	}
	res.Attendee = a
	res.Graduated = a != nil
	return res, nil
}

func (s *Service) save(ctx context.Context, rec *domain.PipelineRecord) error {
	rec.UpdatedAt = s.now()
	err := s.records.Update(ctx, rec)
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{Resource: "pipeline record", ID: rec.ID}
	}
	if err != nil {
		return persistence("update pipeline record", err)
	}
	return nil
}
