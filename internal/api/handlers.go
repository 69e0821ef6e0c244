package api

import (
	"context"

	"github.com/ignite/event-crm/internal/export"
	"github.com/ignite/event-crm/internal/service/contact"
	"github.com/ignite/event-crm/internal/service/event"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// RosterExporter writes an event's attendee roster somewhere durable.
type RosterExporter interface {
	Export(ctx context.Context, orgID, eventID string) (*export.Result, error)
}

// Handlers contains all HTTP handlers.
type Handlers struct {
	pipeline *pipeline.Service
	contacts *contact.Service
	events   *event.Service
	exporter RosterExporter
	health   *HealthChecker
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(p *pipeline.Service, c *contact.Service, e *event.Service) *Handlers {
	return &Handlers{
		pipeline: p,
		contacts: c,
		events:   e,
		health:   NewHealthChecker(nil, nil, nil, ""),
	}
}

// SetExporter enables the roster export endpoint.
func (h *Handlers) SetExporter(x RosterExporter) {
	h.exporter = x
}

// SetHealthChecker replaces the dependency checker behind /health.
func (h *Handlers) SetHealthChecker(hc *HealthChecker) {
	if hc != nil {
		h.health = hc
	}
}
