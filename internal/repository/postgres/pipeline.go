package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// PipelineRepo implements pipeline.Repository against PostgreSQL. Stage
// names are normalized on the way in and on the way out, so rows written
// under legacy names read back canonical.
type PipelineRepo struct{ db *sql.DB }

// NewPipelineRepo creates a Postgres-backed pipeline record repository.
func NewPipelineRepo(db *sql.DB) *PipelineRepo { return &PipelineRepo{db: db} }

const pipelineColumns = `id, organization_id, event_id, contact_id, audience_type, stage, source,
		       rsvp, rsvp_date, paid, payment_date, amount, engagement_score, tags,
		       notes, created_at, updated_at`

func scanPipelineRecord(s scanner) (*domain.PipelineRecord, error) {
	var (
		rec         domain.PipelineRecord
		rsvpDate    sql.NullTime
		paymentDate sql.NullTime
		tags        pq.StringArray
		notes       []byte
	)
	if err := s.Scan(&rec.ID, &rec.OrganizationID, &rec.EventID, &rec.ContactID,
		&rec.AudienceType, &rec.Stage, &rec.Source,
		&rec.RSVP, &rsvpDate, &rec.Paid, &paymentDate, &rec.Amount, &rec.EngagementScore, &tags,
		&notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Stage = domain.NormalizeStage(string(rec.Stage))
	rec.RSVPDate = timePtr(rsvpDate)
	rec.PaymentDate = timePtr(paymentDate)
	rec.Tags = stringsOrEmpty(tags)
	if len(notes) > 0 {
		if err := json.Unmarshal(notes, &rec.Notes); err != nil {
			return nil, fmt.Errorf("decode notes: %w", err)
		}
	}
	return &rec, nil
}

func encodeNotes(n domain.PipelineNotes) ([]byte, error) {
	if n.IsZero() {
		return []byte("{}"), nil
	}
	return json.Marshal(n)
}

func (r *PipelineRepo) queryRecords(ctx context.Context, op, q string, args ...any) ([]domain.PipelineRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.PipelineRecord{}
	for rows.Next() {
		rec, err := scanPipelineRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *PipelineRepo) Get(ctx context.Context, orgID, id string) (*domain.PipelineRecord, error) {
	if !validIDs(id) {
		return nil, pipeline.ErrNotFound
	}
	rec, err := scanPipelineRecord(r.db.QueryRowContext(ctx, `
		SELECT `+pipelineColumns+`
		FROM event_pipeline_entries
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, pipeline.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get pipeline record: %w", err)
	}
	return rec, nil
}

func (r *PipelineRepo) FindOne(ctx context.Context, key domain.PipelineKey) (*domain.PipelineRecord, error) {
	rec, err := scanPipelineRecord(r.db.QueryRowContext(ctx, `
		SELECT `+pipelineColumns+`
		FROM event_pipeline_entries
		WHERE organization_id = $1 AND event_id = $2 AND contact_id = $3 AND audience_type = $4
	`, key.OrganizationID, key.EventID, key.ContactID, key.AudienceType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pipeline record: %w", err)
	}
	return rec, nil
}

func (r *PipelineRepo) Find(ctx context.Context, orgID string, f pipeline.ListFilter) ([]domain.PipelineRecord, error) {
	q := `
		SELECT ` + pipelineColumns + `
		FROM event_pipeline_entries
		WHERE organization_id = $1`
	args := []any{orgID}
	idx := 2
	add := func(cond string, val any) {
		q += fmt.Sprintf(" AND "+cond, idx)
		args = append(args, val)
		idx++
	}

	if f.EventID != "" {
		add("event_id = $%d", f.EventID)
	}
	if f.ContactID != "" {
		add("contact_id = $%d", f.ContactID)
	}
	if f.AudienceType != "" {
		add("audience_type = $%d", string(f.AudienceType))
	}
	if f.Stage != "" {
		add("stage = ANY($%d)", pq.Array(domain.StageVariants(f.Stage)))
	}
	q += " ORDER BY created_at, id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, f.Limit, f.Offset)
	}
	return r.queryRecords(ctx, "list pipeline records", q, args...)
}

func (r *PipelineRepo) Create(ctx context.Context, rec *domain.PipelineRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Stage = domain.NormalizeStage(string(rec.Stage))
	notes, err := encodeNotes(rec.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO event_pipeline_entries
			(id, organization_id, event_id, contact_id, audience_type, stage, source,
			 rsvp, rsvp_date, paid, payment_date, amount, engagement_score, tags,
			 notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, rec.ID, rec.OrganizationID, rec.EventID, rec.ContactID, rec.AudienceType, rec.Stage, rec.Source,
		rec.RSVP, nullTime(rec.RSVPDate), rec.Paid, nullTime(rec.PaymentDate), rec.Amount,
		rec.EngagementScore, pq.Array(rec.Tags), notes, rec.CreatedAt, rec.UpdatedAt)
	if isUniqueViolation(err) {
		return pipeline.ErrAlreadyInPipeline
	}
	if err != nil {
		return fmt.Errorf("create pipeline record: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns. The uniqueness key columns are
// never rewritten.
func (r *PipelineRepo) Update(ctx context.Context, rec *domain.PipelineRecord) error {
	if !validIDs(rec.ID) {
		return pipeline.ErrNotFound
	}
	rec.Stage = domain.NormalizeStage(string(rec.Stage))
	notes, err := encodeNotes(rec.Notes)
	if err != nil {
		return fmt.Errorf("encode notes: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE event_pipeline_entries
		SET stage = $3, rsvp = $4, rsvp_date = $5, paid = $6, payment_date = $7,
		    amount = $8, engagement_score = $9, tags = $10, notes = $11, updated_at = $12
		WHERE id = $1 AND organization_id = $2
	`, rec.ID, rec.OrganizationID, rec.Stage, rec.RSVP, nullTime(rec.RSVPDate), rec.Paid,
		nullTime(rec.PaymentDate), rec.Amount, rec.EngagementScore, pq.Array(rec.Tags), notes, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update pipeline record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pipeline.ErrNotFound
	}
	return nil
}

func (r *PipelineRepo) ListByEventAndStage(ctx context.Context, orgID, eventID string, audienceType domain.AudienceType, stage domain.Stage) ([]domain.PipelineRecord, error) {
	if !validIDs(eventID) {
		return []domain.PipelineRecord{}, nil
	}
	return r.Find(ctx, orgID, pipeline.ListFilter{EventID: eventID, AudienceType: audienceType, Stage: stage})
}

func (r *PipelineRepo) CountByStage(ctx context.Context, orgID, eventID string) (map[domain.Stage]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT stage, COUNT(*)
		FROM event_pipeline_entries
		WHERE organization_id = $1 AND event_id = $2
		GROUP BY stage
	`, orgID, eventID)
	if err != nil {
		return nil, fmt.Errorf("count pipeline records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Stage]int)
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, fmt.Errorf("scan stage count: %w", err)
		}
		counts[domain.NormalizeStage(stage)] += n
	}
	return counts, rows.Err()
}

func (r *PipelineRepo) ListUngraduated(ctx context.Context, limit int) ([]domain.PipelineRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryRecords(ctx, "list ungraduated records", `
		SELECT `+pipelineColumns+`
		FROM event_pipeline_entries p
		WHERE (p.paid OR p.stage = 'paid')
		  AND NOT EXISTS (
		      SELECT 1 FROM event_attendees a
		      WHERE a.organization_id = p.organization_id
		        AND a.event_id = p.event_id
		        AND a.contact_id = p.contact_id)
		ORDER BY p.updated_at
		LIMIT $1
	`, limit)
}
