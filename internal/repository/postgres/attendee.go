package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// AttendeeRepo implements pipeline.AttendeeRepository against PostgreSQL.
type AttendeeRepo struct{ db *sql.DB }

// NewAttendeeRepo creates a Postgres-backed attendee repository.
func NewAttendeeRepo(db *sql.DB) *AttendeeRepo { return &AttendeeRepo{db: db} }

const attendeeColumns = `id, organization_id, event_id, contact_id, COALESCE(pipeline_entry_id::text,''),
		       audience_type, paid, amount, payment_date, attended, attendance_date,
		       source, engagement_score, tags, created_at, updated_at`

func scanAttendee(s scanner) (*domain.AttendeeRecord, error) {
	var (
		a              domain.AttendeeRecord
		paymentDate    sql.NullTime
		attendanceDate sql.NullTime
		tags           pq.StringArray
	)
	if err := s.Scan(&a.ID, &a.OrganizationID, &a.EventID, &a.ContactID, &a.PipelineRecordID,
		&a.AudienceType, &a.Paid, &a.Amount, &paymentDate, &a.Attended, &attendanceDate,
		&a.Source, &a.EngagementScore, &tags, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PaymentDate = timePtr(paymentDate)
	a.AttendanceDate = timePtr(attendanceDate)
	a.Tags = stringsOrEmpty(tags)
	return &a, nil
}

func (r *AttendeeRepo) FindByContact(ctx context.Context, orgID, eventID, contactID string) (*domain.AttendeeRecord, error) {
	if !validIDs(eventID, contactID) {
		return nil, nil
	}
	a, err := scanAttendee(r.db.QueryRowContext(ctx, `
		SELECT `+attendeeColumns+`
		FROM event_attendees
		WHERE organization_id = $1 AND event_id = $2 AND contact_id = $3
	`, orgID, eventID, contactID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find attendee: %w", err)
	}
	return a, nil
}

func (r *AttendeeRepo) Create(ctx context.Context, a *domain.AttendeeRecord) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_attendees
			(id, organization_id, event_id, contact_id, pipeline_entry_id, audience_type,
			 paid, amount, payment_date, attended, attendance_date, source,
			 engagement_score, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5,'')::uuid, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, a.ID, a.OrganizationID, a.EventID, a.ContactID, a.PipelineRecordID, a.AudienceType,
		a.Paid, a.Amount, nullTime(a.PaymentDate), a.Attended, nullTime(a.AttendanceDate), a.Source,
		a.EngagementScore, pq.Array(a.Tags), a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return pipeline.ErrAttendeeExists
	}
	if err != nil {
		return fmt.Errorf("create attendee: %w", err)
	}
	return nil
}

// Update refreshes the graduation-owned columns. Paid is OR-ed so it never
// flips back to false; attendance columns are not in the statement.
func (r *AttendeeRepo) Update(ctx context.Context, a *domain.AttendeeRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_attendees
		SET pipeline_entry_id = NULLIF($3,'')::uuid, paid = paid OR $4, amount = $5,
		    payment_date = COALESCE($6, payment_date), updated_at = $7
		WHERE id = $1 AND organization_id = $2
	`, a.ID, a.OrganizationID, a.PipelineRecordID, a.Paid, a.Amount, nullTime(a.PaymentDate), a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update attendee: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

func (r *AttendeeRepo) ListByEvent(ctx context.Context, orgID, eventID string) ([]domain.AttendeeRecord, error) {
	if !validIDs(eventID) {
		return []domain.AttendeeRecord{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attendeeColumns+`
		FROM event_attendees
		WHERE organization_id = $1 AND event_id = $2
		ORDER BY created_at, id
	`, orgID, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	out := []domain.AttendeeRecord{}
	for rows.Next() {
		a, err := scanAttendee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *AttendeeRepo) MarkAttended(ctx context.Context, orgID, eventID, contactID string, at time.Time) error {
	if !validIDs(eventID, contactID) {
		return pipeline.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_attendees
		SET attended = true, attendance_date = COALESCE(attendance_date, $4), updated_at = $4
		WHERE organization_id = $1 AND event_id = $2 AND contact_id = $3
	`, orgID, eventID, contactID, at)
	if err != nil {
		return fmt.Errorf("mark attended: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}
