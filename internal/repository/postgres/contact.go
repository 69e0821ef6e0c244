package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/contact"
)

// ContactRepo implements contact.Repository and pipeline.ContactStore
// against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

const contactColumns = `id, organization_id, first_name, last_name, email,
		       COALESCE(phone,''), tags, created_at, updated_at`

func scanContact(s scanner) (*domain.Contact, error) {
	var (
		c    domain.Contact
		tags pq.StringArray
	)
	if err := s.Scan(&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.Email,
		&c.Phone, &tags, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Tags = stringsOrEmpty(tags)
	return &c, nil
}

func (r *ContactRepo) queryContacts(ctx context.Context, op, q string, args ...any) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := []domain.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *ContactRepo) Get(ctx context.Context, orgID, id string) (*domain.Contact, error) {
	if !validIDs(id) {
		return nil, contact.ErrNotFound
	}
	c, err := scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE id = $1 AND organization_id = $2
	`, id, orgID))
	if err == sql.ErrNoRows {
		return nil, contact.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// FindByID returns nil when the contact does not exist in the organization.
func (r *ContactRepo) FindByID(ctx context.Context, orgID, id string) (*domain.Contact, error) {
	c, err := r.Get(ctx, orgID, id)
	if err == contact.ErrNotFound {
		return nil, nil
	}
	return c, err
}

func (r *ContactRepo) FindByEmail(ctx context.Context, orgID, email string) (*domain.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND LOWER(email) = $2
	`, orgID, domain.NormalizeEmail(email)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find contact by email: %w", err)
	}
	return c, nil
}

func (r *ContactRepo) List(ctx context.Context, orgID string, f contact.ListFilter) ([]domain.Contact, error) {
	q := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE organization_id = $1`
	args := []any{orgID}
	idx := 2
	if f.Tag != "" {
		q += fmt.Sprintf(" AND $%d = ANY(tags)", idx)
		args = append(args, f.Tag)
		idx++
	}
	q += " ORDER BY created_at, id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
		args = append(args, f.Limit, f.Offset)
	}
	return r.queryContacts(ctx, "list contacts", q, args...)
}

func (r *ContactRepo) FindAllByOrg(ctx context.Context, orgID string) ([]domain.Contact, error) {
	return r.List(ctx, orgID, contact.ListFilter{})
}

func (r *ContactRepo) FindByTags(ctx context.Context, orgID string, tags []string) ([]domain.Contact, error) {
	return r.queryContacts(ctx, "find contacts by tags", `
		SELECT `+contactColumns+`
		FROM contacts
		WHERE organization_id = $1 AND tags && $2
		ORDER BY created_at, id
	`, orgID, pq.Array(domain.NormalizeTags(tags)))
}

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.Email = domain.NormalizeEmail(c.Email)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts
			(id, organization_id, first_name, last_name, email, phone, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Email, c.Phone,
		pq.Array(c.Tags), c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return contact.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) Update(ctx context.Context, c *domain.Contact) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE contacts
		SET first_name = $3, last_name = $4, phone = $5, tags = $6, updated_at = $7
		WHERE id = $1 AND organization_id = $2
	`, c.ID, c.OrganizationID, c.FirstName, c.LastName, c.Phone, pq.Array(c.Tags), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return contact.ErrNotFound
	}
	return nil
}
