package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// Service implements contact business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a contact service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// SaveInput holds the fields for creating or updating a contact.
type SaveInput struct {
	FirstName string   `json:"firstName" validate:"max=100"`
	LastName  string   `json:"lastName" validate:"max=100"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phone" validate:"max=40"`
	Tags      []string `json:"tags" validate:"dive,max=64"`
}

// Save creates a contact, or updates the existing one with the same email.
// Non-empty names and phone overwrite; tags are merged. The boolean result
// reports whether a new contact was created.
func (s *Service) Save(ctx context.Context, orgID string, in SaveInput) (*domain.Contact, bool, error) {
	if orgID == "" {
		return nil, false, ErrMissingOrg
	}
	email := domain.NormalizeEmail(in.Email)
	if email == "" {
		return nil, false, ErrMissingEmail
	}

	existing, err := s.repo.FindByEmail(ctx, orgID, email)
	if err != nil {
		return nil, false, fmt.Errorf("find contact: %w", err)
	}
	if existing == nil {
		now := s.now()
		c := &domain.Contact{
			OrganizationID: orgID,
			FirstName:      in.FirstName,
			LastName:       in.LastName,
			Email:          email,
			Phone:          in.Phone,
			Tags:           domain.NormalizeTags(in.Tags),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err := s.repo.Create(ctx, c)
		if err == nil {
			logger.Info("contact created", "contact_id", c.ID, "email", c.Email)
			return c, true, nil
		}
		if !errors.Is(err, ErrDuplicateEmail) {
			return nil, false, fmt.Errorf("create contact: %w", err)
		}
		// Created concurrently; fall through to the update path.
		existing, err = s.repo.FindByEmail(ctx, orgID, email)
		if err != nil {
			return nil, false, fmt.Errorf("find contact: %w", err)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("contact %s missing after duplicate create", email)
		}
	}

	merge(existing, in)
	existing.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, existing); err != nil {
		return nil, false, fmt.Errorf("update contact: %w", err)
	}
	return existing, false, nil
}

func merge(c *domain.Contact, in SaveInput) {
	if in.FirstName != "" {
		c.FirstName = in.FirstName
	}
	if in.LastName != "" {
		c.LastName = in.LastName
	}
	if in.Phone != "" {
		c.Phone = in.Phone
	}
	c.Tags = domain.NormalizeTags(append(append([]string(nil), c.Tags...), in.Tags...))
}

// Get returns a single contact.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Contact, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns contacts matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Contact, error) {
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if f.Tag != "" {
		tags := domain.NormalizeTags([]string{f.Tag})
		if len(tags) > 0 {
			f.Tag = tags[0]
		}
	}
	return s.repo.List(ctx, orgID, f)
}
