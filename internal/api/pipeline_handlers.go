package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/httputil"
	"github.com/ignite/event-crm/internal/pkg/logger"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

type pushRequest struct {
	OrgID        string   `json:"orgId"`
	SupporterIDs []string `json:"supporterIds" validate:"required,min=1,dive,required"`
	AudienceType string   `json:"audienceType" validate:"omitempty,max=64"`
	Stage        string   `json:"stage" validate:"omitempty,max=64"`
	Source       string   `json:"source" validate:"omitempty,max=64"`
}

type pushAllRequest struct {
	OrgID        string `json:"orgId"`
	AudienceType string `json:"audienceType" validate:"omitempty,max=64"`
	Stage        string `json:"stage" validate:"omitempty,max=64"`
}

type pushByTagRequest struct {
	OrgID        string   `json:"orgId"`
	Tags         []string `json:"tags" validate:"required,min=1,dive,required,max=64"`
	AudienceType string   `json:"audienceType" validate:"omitempty,max=64"`
	Stage        string   `json:"stage" validate:"omitempty,max=64"`
}

type patchRequest struct {
	OrgID           string                `json:"orgId"`
	Stage           *string               `json:"stage" validate:"omitempty,max=64"`
	RSVP            *bool                 `json:"rsvp"`
	Tags            *[]string             `json:"tags" validate:"omitempty,dive,max=64"`
	Amount          *float64              `json:"amount" validate:"omitempty,gte=0"`
	Notes           *domain.PipelineNotes `json:"notes"`
	EngagementScore *int                  `json:"engagementScore" validate:"omitempty,gte=0"`
}

// patchResponse reports a saved record whose graduation did not complete.
type patchResponse struct {
	*pipeline.TransitionResult
	GraduationError string `json:"graduationError,omitempty"`
}

type graduateResponse struct {
	Attendee  *domain.AttendeeRecord `json:"attendee"`
	Graduated bool                   `json:"graduated"`
}

// detached returns a context that outlives the client connection, so a bulk
// push runs to completion once started.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// PushToPipeline adds the given contacts to an event's pipeline.
//
//	POST /api/events/{eventId}/pipeline/push
func (h *Handlers) PushToPipeline(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	report, err := h.pipeline.PushContacts(detached(r), pipeline.PushRequest{
		OrgID:        resolveOrgID(r, req.OrgID),
		EventID:      chi.URLParam(r, "eventId"),
		ContactIDs:   req.SupporterIDs,
		AudienceType: req.AudienceType,
		Stage:        req.Stage,
		Source:       req.Source,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, report)
}

// PushAllToPipeline adds every contact of the organization.
//
//	POST /api/events/{eventId}/pipeline/push-all
func (h *Handlers) PushAllToPipeline(w http.ResponseWriter, r *http.Request) {
	var req pushAllRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	report, err := h.pipeline.PushAll(detached(r), resolveOrgID(r, req.OrgID), chi.URLParam(r, "eventId"), req.AudienceType, req.Stage)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, report)
}

// PushByTagToPipeline adds every contact carrying any of the tags.
//
//	POST /api/events/{eventId}/pipeline/push-by-tag
func (h *Handlers) PushByTagToPipeline(w http.ResponseWriter, r *http.Request) {
	var req pushByTagRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	report, err := h.pipeline.PushByTag(detached(r), resolveOrgID(r, req.OrgID), chi.URLParam(r, "eventId"), req.Tags, req.AudienceType, req.Stage)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, report)
}

// ListPipeline lists an event's records.
//
//	GET /api/events/{eventId}/pipeline?audienceType=&stage=
func (h *Handlers) ListPipeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	recs, err := h.pipeline.ListByEventAndStage(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"), q.Get("audienceType"), q.Get("stage"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"records": recs, "count": len(recs)})
}

// PipelineSummary returns the record count per stage.
//
//	GET /api/events/{eventId}/pipeline/summary
func (h *Handlers) PipelineSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := h.pipeline.Summary(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	total := 0
	for _, c := range counts {
		total += c.Count
	}
	httputil.OK(w, map[string]any{"stages": counts, "total": total})
}

// GetPipelineRecord returns one record.
//
//	GET /api/pipeline/{pipelineId}
func (h *Handlers) GetPipelineRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.pipeline.Get(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "pipelineId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, rec)
}

// PatchPipelineRecord updates a record and graduates it when paid.
//
//	PATCH /api/pipeline/{pipelineId}
func (h *Handlers) PatchPipelineRecord(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "pipelineId")
	res, err := h.pipeline.Patch(r.Context(), resolveOrgID(r, req.OrgID), id, pipeline.PatchInput{
		Stage:           req.Stage,
		RSVP:            req.RSVP,
		Tags:            req.Tags,
		Amount:          req.Amount,
		Notes:           req.Notes,
		EngagementScore: req.EngagementScore,
	})
	if err != nil && res == nil {
		respondServiceError(w, err)
		return
	}
	out := patchResponse{TransitionResult: res}
	if err != nil {
		logger.Error("pipeline record saved but graduation failed", "pipeline_id", id, "error", err)
		out.GraduationError = "graduation pending"
	}
	httputil.OK(w, out)
}

// GraduatePipelineRecord graduates a paid record into an attendee. Unpaid
// or missing records answer with graduated=false.
//
//	POST /api/pipeline/{pipelineId}/graduate
func (h *Handlers) GraduatePipelineRecord(w http.ResponseWriter, r *http.Request) {
	a, err := h.pipeline.Graduate(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "pipelineId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, graduateResponse{Attendee: a, Graduated: a != nil})
}

// ListAttendees lists an event's graduated attendees.
//
//	GET /api/events/{eventId}/attendees
func (h *Handlers) ListAttendees(w http.ResponseWriter, r *http.Request) {
	out, err := h.pipeline.ListAttendees(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"attendees": out, "count": len(out)})
}

// CheckInAttendee marks a graduated contact as attended.
//
//	POST /api/events/{eventId}/attendees/{contactId}/check-in
func (h *Handlers) CheckInAttendee(w http.ResponseWriter, r *http.Request) {
	a, err := h.pipeline.CheckIn(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "eventId"), chi.URLParam(r, "contactId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, a)
}

// ExportRoster writes the attendee roster to object storage.
//
//	POST /api/events/{eventId}/attendees/export
func (h *Handlers) ExportRoster(w http.ResponseWriter, r *http.Request) {
	if h.exporter == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "roster export is not configured")
		return
	}
	orgID := resolveOrgID(r, "")
	if orgID == "" {
		respondServiceError(w, pipeline.ErrMissingOrg)
		return
	}
	res, err := h.exporter.Export(r.Context(), orgID, chi.URLParam(r, "eventId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, res)
}
