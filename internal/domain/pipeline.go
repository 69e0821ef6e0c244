package domain

import "time"

// PipelineRecord is a contact's in-progress position in one event's funnel
// for one audience segment. Exactly one exists per PipelineKey.
type PipelineRecord struct {
	ID              string        `json:"id" db:"id"`
	OrganizationID  string        `json:"organizationId" db:"organization_id"`
	EventID         string        `json:"eventId" db:"event_id"`
	ContactID       string        `json:"contactId" db:"contact_id"`
	AudienceType    AudienceType  `json:"audienceType" db:"audience_type"`
	Stage           Stage         `json:"stage" db:"stage"`
	Source          Source        `json:"source" db:"source"`
	RSVP            bool          `json:"rsvp" db:"rsvp"`
	RSVPDate        *time.Time    `json:"rsvpDate,omitempty" db:"rsvp_date"`
	Paid            bool          `json:"paid" db:"paid"`
	PaymentDate     *time.Time    `json:"paymentDate,omitempty" db:"payment_date"`
	Amount          float64       `json:"amount" db:"amount"`
	EngagementScore int           `json:"engagementScore" db:"engagement_score"`
	Tags            []string      `json:"tags" db:"tags"`
	Notes           PipelineNotes `json:"notes" db:"notes"`
	CreatedAt       time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" db:"updated_at"`
}

// Key returns the uniqueness key of the record.
func (r *PipelineRecord) Key() PipelineKey {
	return PipelineKey{
		OrganizationID: r.OrganizationID,
		EventID:        r.EventID,
		ContactID:      r.ContactID,
		AudienceType:   r.AudienceType,
	}
}

// IsPaid reports whether the record qualifies for graduation.
func (r *PipelineRecord) IsPaid() bool {
	return r.Paid || r.Stage == StagePaid
}

// PipelineKey identifies the single pipeline record a contact may hold per
// event and audience type.
type PipelineKey struct {
	OrganizationID string
	EventID        string
	ContactID      string
	AudienceType   AudienceType
}

// PipelineNotes holds the form answers captured alongside a pipeline record.
// Every field is optional.
type PipelineNotes struct {
	SpouseOrOther      string `json:"spouseOrOther,omitempty"`
	HowManyInParty     *int   `json:"howManyInParty,omitempty"`
	LikelihoodToAttend string `json:"likelihoodToAttend,omitempty"`
}

// IsZero reports whether no note field is set.
func (n PipelineNotes) IsZero() bool {
	return n.SpouseOrOther == "" && n.HowManyInParty == nil && n.LikelihoodToAttend == ""
}
