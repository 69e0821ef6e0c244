// Package notify publishes pipeline side effects to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// EventType names the kind of graduation message.
type EventType string

const (
	EventAttendeeCreated EventType = "attendee.created"
	EventAttendeeUpdated EventType = "attendee.updated"
)

// GraduationEvent is the message body sent for every graduation.
type GraduationEvent struct {
	EventType        EventType `json:"event_type"`
	OrgID            string    `json:"org_id"`
	EventID          string    `json:"event_id"`
	ContactID        string    `json:"contact_id"`
	AttendeeID       string    `json:"attendee_id"`
	PipelineRecordID string    `json:"pipeline_record_id"`
	AudienceType     string    `json:"audience_type"`
	Amount           float64   `json:"amount"`
	Timestamp        time.Time `json:"timestamp"`
}

// sqsAPI is the subset of *sqs.Client the publisher uses.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Publisher sends graduation events to an SQS queue. It implements
// pipeline.Notifier; sends run in the background and never block the
// request that graduated the attendee.
type Publisher struct {
	client   sqsAPI
	queueURL string
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewPublisher creates a publisher for queueURL.
func NewPublisher(client sqsAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL, timeout: 5 * time.Second}
}

// AttendeeGraduated queues a message describing a.
func (p *Publisher) AttendeeGraduated(_ context.Context, a *domain.AttendeeRecord, created bool) {
	evt := GraduationEvent{
		EventType:        EventAttendeeUpdated,
		OrgID:            a.OrganizationID,
		EventID:          a.EventID,
		ContactID:        a.ContactID,
		AttendeeID:       a.ID,
		PipelineRecordID: a.PipelineRecordID,
		AudienceType:     string(a.AudienceType),
		Amount:           a.Amount,
		Timestamp:        time.Now().UTC(),
	}
	if created {
		evt.EventType = EventAttendeeCreated
	}

	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal graduation event", "error", err)
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"event_type": {DataType: aws.String("String"), StringValue: aws.String(string(evt.EventType))},
			},
		})
		if err != nil {
			logger.Error("publish graduation event", "attendee_id", evt.AttendeeID, "error", err)
		}
	}()
}

// Wait blocks until in-flight sends finish. Call it on shutdown.
func (p *Publisher) Wait() { p.wg.Wait() }
