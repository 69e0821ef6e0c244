package pipeline

import (
	"context"
	"errors"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// Skip reasons reported by the bulk push operations.
const (
	ReasonAlreadyInPipeline = "already in pipeline"
	errContactNotFound      = "not found"
)

// PushRequest describes a bulk push of contacts into an event funnel.
// Empty AudienceType, Stage and Source take the service defaults.
type PushRequest struct {
	OrgID        string
	EventID      string
	ContactIDs   []string
	AudienceType string
	Stage        string
	Source       string
	// Tags are stamped on every record the push creates.
	Tags []string
}

// PushReport is the per-contact outcome of a bulk push. Every input
// contact appears in Success, Errors or Skipped; a contact whose record was
// created but failed to graduate appears in both Success and Errors.
type PushReport struct {
	Success []PushSuccess `json:"success"`
	Errors  []PushError   `json:"errors"`
	Skipped []PushSkip    `json:"skipped"`
}

// PushSuccess reports a created pipeline record.
type PushSuccess struct {
	ContactID  string       `json:"contactId"`
	PipelineID string       `json:"pipelineId"`
	Stage      domain.Stage `json:"stage"`
	Graduated  bool         `json:"graduated"`
}

// PushError reports a contact that could not be processed.
type PushError struct {
	ContactID string `json:"contactId"`
	Error     string `json:"error"`
}

// PushSkip reports a contact that already had a record.
type PushSkip struct {
	ContactID  string `json:"contactId"`
	Reason     string `json:"reason"`
	PipelineID string `json:"pipelineId,omitempty"`
}

func newPushReport() *PushReport {
	return &PushReport{
		Success: []PushSuccess{},
		Errors:  []PushError{},
		Skipped: []PushSkip{},
	}
}

// pushPlan is a validated push request.
type pushPlan struct {
	orgID        string
	eventID      string
	audienceType domain.AudienceType
	stage        domain.Stage
	stages       []domain.Stage
	source       domain.Source
	tags         []string
}

// pushItem is one contact to push. contact is nil when it still has to be
// looked up.
type pushItem struct {
	contactID string
	contact   *domain.Contact
}

// PushContacts pushes the listed contacts into an event's funnel. Contacts
// are processed in input order and independently of one another: one
// contact's failure never aborts the others and nothing is rolled back.
func (s *Service) PushContacts(ctx context.Context, req PushRequest) (*PushReport, error) {
	if err := requireScope(req.OrgID, req.EventID); err != nil {
		return nil, err
	}
	if len(req.ContactIDs) == 0 {
		return nil, ErrNoContacts
	}
	plan, err := s.plan(ctx, req, domain.SourceAdminAdd)
	if err != nil {
		return nil, err
	}

	items := make([]pushItem, len(req.ContactIDs))
	for i, id := range req.ContactIDs {
		items[i] = pushItem{contactID: id}
	}
	return s.push(ctx, plan, items), nil
}

// PushAll pushes every contact of the organization into an event's funnel
// with source bulk_import.
func (s *Service) PushAll(ctx context.Context, orgID, eventID, audienceType, stage string) (*PushReport, error) {
	plan, err := s.plan(ctx, PushRequest{
		OrgID:        orgID,
		EventID:      eventID,
		AudienceType: audienceType,
		Stage:        stage,
		Source:       string(domain.SourceBulkImport),
	}, domain.SourceBulkImport)
	if err != nil {
		return nil, err
	}

	contacts, err := s.contacts.FindAllByOrg(ctx, orgID)
	if err != nil {
		return nil, persistence("list contacts", err)
	}
	return s.push(ctx, plan, contactItems(contacts)), nil
}

// PushByTag pushes every contact carrying any of tags into an event's
// funnel with source tag_filter. The tags are stamped on created records.
func (s *Service) PushByTag(ctx context.Context, orgID, eventID string, tags []string, audienceType, stage string) (*PushReport, error) {
	if err := requireScope(orgID, eventID); err != nil {
		return nil, err
	}
	tags = domain.NormalizeTags(tags)
	if len(tags) == 0 {
		return nil, ErrNoTags
	}
	plan, err := s.plan(ctx, PushRequest{
		OrgID:        orgID,
		EventID:      eventID,
		AudienceType: audienceType,
		Stage:        stage,
		Source:       string(domain.SourceTagFilter),
		Tags:         tags,
	}, domain.SourceTagFilter)
	if err != nil {
		return nil, err
	}

	contacts, err := s.contacts.FindByTags(ctx, orgID, tags)
	if err != nil {
		return nil, persistence("find contacts by tag", err)
	}
	return s.push(ctx, plan, contactItems(contacts)), nil
}

func contactItems(contacts []domain.Contact) []pushItem {
	items := make([]pushItem, len(contacts))
	for i := range contacts {
		items[i] = pushItem{contactID: contacts[i].ID, contact: &contacts[i]}
	}
	return items
}

func requireScope(orgID, eventID string) error {
	if orgID == "" {
		return ErrMissingOrg
	}
	if eventID == "" {
		return ErrMissingEvent
	}
	return nil
}

// plan validates the whole-operation preconditions and resolves defaults.
func (s *Service) plan(ctx context.Context, req PushRequest, defaultSource domain.Source) (*pushPlan, error) {
	if err := requireScope(req.OrgID, req.EventID); err != nil {
		return nil, err
	}

	_, stages, audiences, err := s.eventFunnel(ctx, req.OrgID, req.EventID)
	if err != nil {
		return nil, err
	}

	p := &pushPlan{
		orgID:   req.OrgID,
		eventID: req.EventID,
		stages:  stages,
		tags:    domain.NormalizeTags(req.Tags),
	}

	if req.Stage == "" {
		p.stage = stages[0]
	} else {
		p.stage = domain.NormalizeStage(req.Stage)
		if !domain.ContainsStage(stages, p.stage) {
			return nil, &InvalidStageError{Stage: req.Stage, Allowed: domain.StageStrings(stages)}
		}
	}

	if req.AudienceType == "" {
		p.audienceType = s.defaultAudience(audiences)
	} else {
		p.audienceType = domain.NormalizeAudienceType(req.AudienceType)
		if !domain.ContainsAudienceType(audiences, p.audienceType) {
			return nil, ErrInvalidAudienceType
		}
	}

	p.source = defaultSource
	if req.Source != "" {
		p.source = domain.Source(req.Source)
		if !p.source.Valid() {
			return nil, ErrInvalidSource
		}
	}
	return p, nil
}

// defaultAudience is the configured default when the event allows it, else
// the event's first audience type.
func (s *Service) defaultAudience(allowed []domain.AudienceType) domain.AudienceType {
	if domain.ContainsAudienceType(allowed, s.settings.DefaultAudienceType) || len(allowed) == 0 {
		return s.settings.DefaultAudienceType
	}
	return allowed[0]
}

func (s *Service) push(ctx context.Context, p *pushPlan, items []pushItem) *PushReport {
	report := newPushReport()
	for _, it := range items {
		s.pushOne(ctx, p, it, report)
	}

	logger.Info("pipeline push completed",
		"org_id", p.orgID,
		"event_id", p.eventID,
		"stage", p.stage,
		"source", p.source,
		"success", len(report.Success),
		"skipped", len(report.Skipped),
		"errors", len(report.Errors),
	)
	return report
}

func (s *Service) pushOne(ctx context.Context, p *pushPlan, it pushItem, report *PushReport) {
	fail := func(msg string) {
		pushItemsTotal.WithLabelValues("error").Inc()
		report.Errors = append(report.Errors, PushError{ContactID: it.contactID, Error: msg})
	}
	skip := func(pipelineID string) {
		pushItemsTotal.WithLabelValues("skipped").Inc()
		report.Skipped = append(report.Skipped, PushSkip{
			ContactID:  it.contactID,
			Reason:     ReasonAlreadyInPipeline,
			PipelineID: pipelineID,
		})
	}

	contact := it.contact
	if contact == nil {
		c, err := s.contacts.FindByID(ctx, p.orgID, it.contactID)
		if err != nil {
			fail(persistence("find contact", err).Error())
			return
		}
		if c == nil {
			fail(errContactNotFound)
			return
		}
		contact = c
	}

	key := domain.PipelineKey{
		OrganizationID: p.orgID,
		EventID:        p.eventID,
		ContactID:      contact.ID,
		AudienceType:   p.audienceType,
	}
	existing, err := s.records.FindOne(ctx, key)
	if err != nil {
		fail(persistence("find pipeline record", err).Error())
		return
	}
	if existing != nil {
		skip(existing.ID)
		return
	}

	now := s.now()
	rec, err := ApplyStage(domain.PipelineRecord{
		OrganizationID: p.orgID,
		EventID:        p.eventID,
		ContactID:      contact.ID,
		AudienceType:   p.audienceType,
		Source:         p.source,
		Tags:           append([]string(nil), p.tags...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}, string(p.stage), p.stages, TransitionExtra{}, now)
	if err != nil {
		fail(err.Error())
		return
	}

	if err := s.records.Create(ctx, &rec); err != nil {
		if errors.Is(err, ErrAlreadyInPipeline) {
			// Lost a race with a concurrent push for the same key.
			var id string
			if winner, ferr := s.records.FindOne(ctx, key); ferr == nil && winner != nil {
				id = winner.ID
			}
			skip(id)
			return
		}
		fail(persistence("create pipeline record", err).Error())
		return
	}

	pushItemsTotal.WithLabelValues("success").Inc()
	success := PushSuccess{ContactID: it.contactID, PipelineID: rec.ID, Stage: rec.Stage}
	if rec.IsPaid() {
		a, err := s.graduateRecord(ctx, &rec)
		if err != nil {
			report.Errors = append(report.Errors, PushError{
				ContactID: it.contactID,
				Error:     "graduation failed: " + err.Error(),
			})
		}
		success.Graduated = a != nil
	}
	report.Success = append(report.Success, success)
}
