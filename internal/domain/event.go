package domain

import "time"

// Event is an organization event with its funnel configuration.
type Event struct {
	ID             string         `json:"id" db:"id"`
	OrganizationID string         `json:"organizationId" db:"organization_id"`
	Name           string         `json:"name" db:"name"`
	Stages         []Stage        `json:"stages" db:"stages"`
	AudienceTypes  []AudienceType `json:"audienceTypes" db:"audience_types"`
	StartsAt       *time.Time     `json:"startsAt,omitempty" db:"starts_at"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// StageList returns the event's stages in normalized form, or defaults when
// the event configures none.
func (e *Event) StageList(defaults []Stage) []Stage {
	if len(e.Stages) == 0 {
		return defaults
	}
	raw := make([]string, len(e.Stages))
	for i, s := range e.Stages {
		raw[i] = string(s)
	}
	return NormalizeStages(raw)
}

// AudienceTypeList returns the event's audience types, or defaults when the
// event configures none.
func (e *Event) AudienceTypeList(defaults []AudienceType) []AudienceType {
	if len(e.AudienceTypes) == 0 {
		return defaults
	}
	return e.AudienceTypes
}
