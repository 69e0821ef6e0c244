// Package export writes event rosters to object storage.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

var header = []string{
	"first_name", "last_name", "email", "audience_type", "paid", "amount",
	"payment_date", "attended", "source", "tags",
}

// s3API is the subset of *s3.Client the exporter uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AttendeeLister lists an event's graduated attendees.
type AttendeeLister interface {
	ListAttendees(ctx context.Context, orgID, eventID string) ([]domain.AttendeeRecord, error)
}

// ContactLookup resolves attendee contacts.
type ContactLookup interface {
	FindByID(ctx context.Context, orgID, contactID string) (*domain.Contact, error)
}

// Result describes a written roster.
type Result struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Rows   int    `json:"rows"`
}

// RosterExporter writes attendee rosters as CSV objects to S3.
type RosterExporter struct {
	client    s3API
	bucket    string
	attendees AttendeeLister
	contacts  ContactLookup
	now       func() time.Time
}

// NewRosterExporter creates an exporter writing to bucket.
func NewRosterExporter(client s3API, bucket string, attendees AttendeeLister, contacts ContactLookup) *RosterExporter {
	return &RosterExporter{
		client:    client,
		bucket:    bucket,
		attendees: attendees,
		contacts:  contacts,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Export writes the event's roster and returns where it was stored.
// Attendees whose contact no longer exists are written with empty name and
// email columns.
func (e *RosterExporter) Export(ctx context.Context, orgID, eventID string) (*Result, error) {
	list, err := e.attendees.ListAttendees(ctx, orgID, eventID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write roster header: %w", err)
	}
	for _, a := range list {
		c, err := e.contacts.FindByID(ctx, orgID, a.ContactID)
		if err != nil {
			return nil, fmt.Errorf("load contact %s: %w", a.ContactID, err)
		}
		if c == nil {
			c = &domain.Contact{}
		}
		if err := w.Write(row(c, a)); err != nil {
			return nil, fmt.Errorf("write roster row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush roster: %w", err)
	}

	key := fmt.Sprintf("rosters/%s/%s/%s.csv", orgID, eventID, e.now().Format("20060102T150405Z"))
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return nil, fmt.Errorf("putting roster to S3 bucket %s: %w", e.bucket, err)
	}

	logger.Info("roster exported", "event_id", eventID, "key", key, "rows", len(list))
	return &Result{Bucket: e.bucket, Key: key, Rows: len(list)}, nil
}

func row(c *domain.Contact, a domain.AttendeeRecord) []string {
	var paymentDate string
	if a.PaymentDate != nil {
		paymentDate = a.PaymentDate.UTC().Format(time.RFC3339)
	}
	return []string{
		c.FirstName,
		c.LastName,
		c.Email,
		string(a.AudienceType),
		strconv.FormatBool(a.Paid),
		strconv.FormatFloat(a.Amount, 'f', 2, 64),
		paymentDate,
		strconv.FormatBool(a.Attended),
		string(a.Source),
		strings.Join(a.Tags, ";"),
	}
}
