package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/event-crm/internal/pkg/httputil"
	"github.com/ignite/event-crm/internal/service/event"
)

type createEventRequest struct {
	OrgID string `json:"orgId"`
	event.CreateInput
}

type stagesRequest struct {
	OrgID  string   `json:"orgId"`
	Stages []string `json:"stages" validate:"dive,required,max=64"`
}

// CreateEvent creates an event with its funnel configuration.
//
//	POST /api/events
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	e, err := h.events.Create(r.Context(), resolveOrgID(r, req.OrgID), req.CreateInput)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, e)
}

// ListEvents lists the organization's events.
//
//	GET /api/events
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	out, err := h.events.List(r.Context(), resolveOrgID(r, ""))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"events": out, "count": len(out)})
}

// GetEvent returns one event.
//
//	GET /api/events/{eventId}
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	e, err := h.events.Get(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, e)
}

// GetEventStages returns the event's effective stage list.
//
//	GET /api/events/{eventId}/stages
func (h *Handlers) GetEventStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.events.StagesForEvent(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"stages": stages})
}

// UpdateEventStages replaces the event's stage list. An empty list reverts
// to the defaults.
//
//	PUT /api/events/{eventId}/stages
func (h *Handlers) UpdateEventStages(w http.ResponseWriter, r *http.Request) {
	var req stagesRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	stages, err := h.events.UpdateStages(r.Context(), resolveOrgID(r, req.OrgID), chi.URLParam(r, "eventId"), req.Stages)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"stages": stages})
}
