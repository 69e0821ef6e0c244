package memory

import (
	"context"
	"strings"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/contact"
)

// ContactRepo implements contact.Repository and pipeline.ContactStore.
type ContactRepo struct{ s *Store }

func copyContact(c *domain.Contact) *domain.Contact {
	cp := *c
	cp.Tags = cloneStrings(c.Tags)
	return &cp
}

func (r *ContactRepo) Get(_ context.Context, orgID, id string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[id]
	if !ok || c.OrganizationID != orgID {
		return nil, contact.ErrNotFound
	}
	return copyContact(c), nil
}

func (r *ContactRepo) FindByID(_ context.Context, orgID, id string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.contacts[id]
	if !ok || c.OrganizationID != orgID {
		return nil, nil
	}
	return copyContact(c), nil
}

func (r *ContactRepo) FindByEmail(_ context.Context, orgID, email string) (*domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = domain.NormalizeEmail(email)
	for _, id := range r.s.contactOrder {
		c := r.s.contacts[id]
		if c.OrganizationID == orgID && c.Email == email {
			return copyContact(c), nil
		}
	}
	return nil, nil
}

func (r *ContactRepo) List(_ context.Context, orgID string, f contact.ListFilter) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Contact{}
	for _, id := range r.s.contactOrder {
		c := r.s.contacts[id]
		if c.OrganizationID != orgID {
			continue
		}
		if f.Tag != "" && !c.HasAnyTag([]string{f.Tag}) {
			continue
		}
		out = append(out, *copyContact(c))
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r *ContactRepo) FindAllByOrg(ctx context.Context, orgID string) ([]domain.Contact, error) {
	return r.List(ctx, orgID, contact.ListFilter{})
}

func (r *ContactRepo) FindByTags(_ context.Context, orgID string, tags []string) ([]domain.Contact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Contact{}
	for _, id := range r.s.contactOrder {
		c := r.s.contacts[id]
		if c.OrganizationID == orgID && c.HasAnyTag(tags) {
			out = append(out, *copyContact(c))
		}
	}
	return out, nil
}

func (r *ContactRepo) Create(_ context.Context, c *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.Email = domain.NormalizeEmail(c.Email)
	for _, existing := range r.s.contacts {
		if existing.OrganizationID == c.OrganizationID && strings.EqualFold(existing.Email, c.Email) {
			return contact.ErrDuplicateEmail
		}
	}
	c.ID = newID(c.ID)
	r.s.contacts[c.ID] = copyContact(c)
	r.s.contactOrder = append(r.s.contactOrder, c.ID)
	return nil
}

func (r *ContactRepo) Update(_ context.Context, c *domain.Contact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.contacts[c.ID]
	if !ok || existing.OrganizationID != c.OrganizationID {
		return contact.ErrNotFound
	}
	existing.FirstName = c.FirstName
	existing.LastName = c.LastName
	existing.Phone = c.Phone
	existing.Tags = cloneStrings(c.Tags)
	existing.UpdatedAt = c.UpdatedAt
	return nil
}
