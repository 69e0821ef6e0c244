package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/event"
)

// EventRepo implements event.Repository against PostgreSQL.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, organization_id, name, stages, audience_types, starts_at, created_at, updated_at`

func scanEvent(s scanner) (*domain.Event, error) {
	var (
		e         domain.Event
		stages    pq.StringArray
		audiences pq.StringArray
		startsAt  sql.NullTime
	)
	if err := s.Scan(&e.ID, &e.OrganizationID, &e.Name, &stages, &audiences,
		&startsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Stages = domain.NormalizeStages(stages)
	e.AudienceTypes = make([]domain.AudienceType, 0, len(audiences))
	for _, a := range audiences {
		e.AudienceTypes = append(e.AudienceTypes, domain.NormalizeAudienceType(a))
	}
	e.StartsAt = timePtr(startsAt)
	return &e, nil
}

func (r *EventRepo) Get(ctx context.Context, orgID, id string) (*domain.Event, error) {
	if !validIDs(id) {
		return nil, event.ErrNotFound
	}
	e, err := scanEvent(r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepo) List(ctx context.Context, orgID string) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	out := []domain.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events
			(id, organization_id, name, stages, audience_types, starts_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.OrganizationID, e.Name,
		pq.Array(domain.StageStrings(e.Stages)), pq.Array(audienceStrings(e.AudienceTypes)),
		nullTime(e.StartsAt), e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *EventRepo) UpdateStages(ctx context.Context, orgID, id string, stages []domain.Stage) error {
	if !validIDs(id) {
		return event.ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET stages = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
	`, id, orgID, pq.Array(domain.StageStrings(stages)))
	if err != nil {
		return fmt.Errorf("update event stages: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func audienceStrings(in []domain.AudienceType) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = string(a)
	}
	return out
}
