package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// Settings holds the tenant-wide defaults applied when an event has no
// funnel configuration of its own.
type Settings struct {
	DefaultStages        []domain.Stage
	DefaultAudienceTypes []domain.AudienceType
	DefaultAudienceType  domain.AudienceType
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		DefaultStages:        domain.DefaultStages,
		DefaultAudienceTypes: domain.DefaultAudienceTypes,
		DefaultAudienceType:  domain.AudienceOrgMember,
	}
}

// Service implements the pipeline business logic. All public methods are
// safe for concurrent use if the underlying stores are.
type Service struct {
	records   Repository
	attendees AttendeeRepository
	contacts  ContactStore
	events    EventConfig
	notifier  Notifier
	settings  Settings
	now       func() time.Time
}

// NewService creates a pipeline service backed by the given stores.
func NewService(records Repository, attendees AttendeeRepository, contacts ContactStore, events EventConfig) *Service {
	return &Service{
		records:   records,
		attendees: attendees,
		contacts:  contacts,
		events:    events,
		notifier:  nopNotifier{},
		settings:  DefaultSettings(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetNotifier installs the receiver of graduation side effects.
func (s *Service) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// SetSettings overrides the tenant defaults. Empty fields keep the built-in
// values.
func (s *Service) SetSettings(st Settings) {
	def := DefaultSettings()
	if len(st.DefaultStages) == 0 {
		st.DefaultStages = def.DefaultStages
	}
	if len(st.DefaultAudienceTypes) == 0 {
		st.DefaultAudienceTypes = def.DefaultAudienceTypes
	}
	if st.DefaultAudienceType == "" {
		st.DefaultAudienceType = def.DefaultAudienceType
	}
	s.settings = st
}

// Get returns a single pipeline record.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.PipelineRecord, error) {
	rec, err := s.records.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Resource: "pipeline record", ID: id}
	}
	if err != nil {
		return nil, persistence("get pipeline record", err)
	}
	return rec, nil
}

// ListByEventAndStage returns an event's records, optionally narrowed by
// audience type and stage. The stage filter accepts legacy aliases.
func (s *Service) ListByEventAndStage(ctx context.Context, orgID, eventID, audienceType, stage string) ([]domain.PipelineRecord, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if eventID == "" {
		return nil, ErrMissingEvent
	}
	var st domain.Stage
	if stage != "" {
		st = domain.NormalizeStage(stage)
	}
	recs, err := s.records.ListByEventAndStage(ctx, orgID, eventID, domain.NormalizeAudienceType(audienceType), st)
	if err != nil {
		return nil, persistence("list pipeline records", err)
	}
	return recs, nil
}

// StageCount is one row of a funnel summary.
type StageCount struct {
	Stage domain.Stage `json:"stage"`
	Count int          `json:"count"`
}

// Summary returns the number of records per configured stage, in stage
// order. Stages present in the store but no longer configured are appended.
func (s *Service) Summary(ctx context.Context, orgID, eventID string) ([]StageCount, error) {
	_, stages, _, err := s.eventFunnel(ctx, orgID, eventID)
	if err != nil {
		return nil, err
	}
	counts, err := s.records.CountByStage(ctx, orgID, eventID)
	if err != nil {
		return nil, persistence("count pipeline records", err)
	}

	out := make([]StageCount, 0, len(stages))
	for _, st := range stages {
		out = append(out, StageCount{Stage: st, Count: counts[st]})
		delete(counts, st)
	}
	extra := make([]domain.Stage, 0, len(counts))
	for st := range counts {
		extra = append(extra, st)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	for _, st := range extra {
		out = append(out, StageCount{Stage: st, Count: counts[st]})
	}
	return out, nil
}

// ListAttendees returns every attendee graduated for an event.
func (s *Service) ListAttendees(ctx context.Context, orgID, eventID string) ([]domain.AttendeeRecord, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if eventID == "" {
		return nil, ErrMissingEvent
	}
	out, err := s.attendees.ListByEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, persistence("list attendees", err)
	}
	return out, nil
}

// CheckIn marks a graduated contact as having attended the event.
func (s *Service) CheckIn(ctx context.Context, orgID, eventID, contactID string) (*domain.AttendeeRecord, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if eventID == "" {
		return nil, ErrMissingEvent
	}
	err := s.attendees.MarkAttended(ctx, orgID, eventID, contactID, s.now())
	if errors.Is(err, ErrNotFound) {
		return nil, &NotFoundError{Resource: "attendee", ID: contactID}
	}
	if err != nil {
		return nil, persistence("mark attended", err)
	}
	a, err := s.attendees.FindByContact(ctx, orgID, eventID, contactID)
	if err != nil {
		return nil, persistence("find attendee", err)
	}
	if a == nil {
		return nil, &NotFoundError{Resource: "attendee", ID: contactID}
	}
	logger.Info("attendee checked in", "attendee_id", a.ID, "event_id", eventID)
	return a, nil
}

// eventFunnel loads the event and resolves its stage and audience lists.
func (s *Service) eventFunnel(ctx context.Context, orgID, eventID string) (*domain.Event, []domain.Stage, []domain.AudienceType, error) {
	ev, err := s.events.FindEvent(ctx, orgID, eventID)
	if err != nil {
		return nil, nil, nil, persistence("load event", err)
	}
	if ev == nil {
		return nil, nil, nil, &NotFoundError{Resource: "event", ID: eventID}
	}
	return ev, ev.StageList(s.settings.DefaultStages), ev.AudienceTypeList(s.settings.DefaultAudienceTypes), nil
}
