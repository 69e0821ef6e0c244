package domain

import "time"

// AttendeeRecord is the permanent snapshot of a contact who reached the paid
// stage for an event. At most one exists per (organization, event, contact).
// Attended and AttendanceDate belong to the check-in flow; graduation never
// overwrites them.
type AttendeeRecord struct {
	ID               string       `json:"id" db:"id"`
	OrganizationID   string       `json:"organizationId" db:"organization_id"`
	EventID          string       `json:"eventId" db:"event_id"`
	ContactID        string       `json:"contactId" db:"contact_id"`
	PipelineRecordID string       `json:"pipelineRecordId" db:"pipeline_entry_id"`
	AudienceType     AudienceType `json:"audienceType" db:"audience_type"`
	Paid             bool         `json:"paid" db:"paid"`
	Amount           float64      `json:"amount" db:"amount"`
	PaymentDate      *time.Time   `json:"paymentDate,omitempty" db:"payment_date"`
	Attended         bool         `json:"attended" db:"attended"`
	AttendanceDate   *time.Time   `json:"attendanceDate,omitempty" db:"attendance_date"`

	// Snapshot of the originating pipeline record at graduation time.
	Source          Source   `json:"source" db:"source"`
	EngagementScore int      `json:"engagementScore" db:"engagement_score"`
	Tags            []string `json:"tags" db:"tags"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
