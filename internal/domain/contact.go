package domain

import (
	"strings"
	"time"
)

// Contact represents a person known to an organization. Contacts are unique
// per (organization, email) and are referenced, never owned, by pipeline and
// attendee records.
type Contact struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organizationId" db:"organization_id"`
	FirstName      string    `json:"firstName" db:"first_name"`
	LastName       string    `json:"lastName" db:"last_name"`
	Email          string    `json:"email" db:"email"`
	Phone          string    `json:"phone,omitempty" db:"phone"`
	Tags           []string  `json:"tags" db:"tags"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// FullName joins first and last name, skipping empty parts.
func (c *Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// HasAnyTag reports whether the contact carries at least one of tags.
func (c *Contact) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range c.Tags {
			if strings.EqualFold(want, have) {
				return true
			}
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address for storage and
// uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeTags trims, lower-cases and de-duplicates tags, keeping first-seen
// order. Empty tags are dropped.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
