package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// Service implements event business logic.
type Service struct {
	repo          Repository
	cache         Cache
	defaultStages []domain.Stage
	now           func() time.Time
}

// NewService creates an event service. cache may be nil.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{
		repo:          repo,
		cache:         cache,
		defaultStages: domain.DefaultStages,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetDefaultStages overrides the stage list used for events that configure
// none. An empty list keeps the built-in default.
func (s *Service) SetDefaultStages(stages []domain.Stage) {
	if len(stages) > 0 {
		s.defaultStages = stages
	}
}

// CreateInput holds the fields for creating an event.
type CreateInput struct {
	Name          string     `json:"name" validate:"required,max=200"`
	Stages        []string   `json:"stages" validate:"dive,required,max=64"`
	AudienceTypes []string   `json:"audienceTypes" validate:"dive,required,max=64"`
	StartsAt      *time.Time `json:"startsAt"`
}

// Create validates and persists a new event. Stage names are normalized
// and a name listed twice (counting aliases) is rejected.
func (s *Service) Create(ctx context.Context, orgID string, in CreateInput) (*domain.Event, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if in.Name == "" {
		return nil, ErrMissingName
	}
	stages, err := normalizeStageList(in.Stages)
	if err != nil {
		return nil, err
	}
	audiences, err := normalizeAudienceList(in.AudienceTypes)
	if err != nil {
		return nil, err
	}

	now := s.now()
	e := &domain.Event{
		OrganizationID: orgID,
		Name:           in.Name,
		Stages:         stages,
		AudienceTypes:  audiences,
		StartsAt:       in.StartsAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	logger.Info("event created", "event_id", e.ID, "org_id", orgID, "stages", len(stages))
	return e, nil
}

// Get returns a single event.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Event, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns the organization's events.
func (s *Service) List(ctx context.Context, orgID string) ([]domain.Event, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	return s.repo.List(ctx, orgID)
}

// UpdateStages replaces an event's stage list and drops it from the cache.
// An empty list reverts the event to the default stages.
func (s *Service) UpdateStages(ctx context.Context, orgID, id string, raw []string) ([]domain.Stage, error) {
	stages, err := normalizeStageList(raw)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStages(ctx, orgID, id, stages); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, orgID, id); err != nil {
			logger.Warn("event cache invalidate failed", "event_id", id, "error", err)
		}
	}
	if len(stages) == 0 {
		return s.defaultStages, nil
	}
	return stages, nil
}

// StagesForEvent returns the event's effective stage list.
func (s *Service) StagesForEvent(ctx context.Context, orgID, id string) ([]domain.Stage, error) {
	e, err := s.FindEvent(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e.StageList(s.defaultStages), nil
}

// FindEvent returns the event or nil when it does not exist. Cache
// failures are logged and fall through to the repository.
func (s *Service) FindEvent(ctx context.Context, orgID, id string) (*domain.Event, error) {
	if s.cache != nil {
		e, err := s.cache.Get(ctx, orgID, id)
		if err != nil {
			logger.Warn("event cache read failed", "event_id", id, "error", err)
		} else if e != nil {
			return e, nil
		}
	}

	e, err := s.repo.Get(ctx, orgID, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, e); err != nil {
			logger.Warn("event cache write failed", "event_id", id, "error", err)
		}
	}
	return e, nil
}

func normalizeStageList(raw []string) ([]domain.Stage, error) {
	out := make([]domain.Stage, 0, len(raw))
	for _, r := range raw {
		st := domain.NormalizeStage(r)
		if st == "" {
			return nil, fmt.Errorf("%w: empty stage name", ErrInvalidStage)
		}
		if domain.ContainsStage(out, st) {
			return nil, &DuplicateError{Field: "stage", Value: string(st)}
		}
		out = append(out, st)
	}
	return out, nil
}

func normalizeAudienceList(raw []string) ([]domain.AudienceType, error) {
	out := make([]domain.AudienceType, 0, len(raw))
	for _, r := range raw {
		a := domain.NormalizeAudienceType(r)
		if a == "" {
			return nil, fmt.Errorf("%w: empty audience type", ErrInvalidAudience)
		}
		if domain.ContainsAudienceType(out, a) {
			return nil, &DuplicateError{Field: audienceField, Value: string(a)}
		}
		out = append(out, a)
	}
	return out, nil
}
