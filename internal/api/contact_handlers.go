package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/event-crm/internal/pkg/httputil"
	"github.com/ignite/event-crm/internal/service/contact"
)

type saveContactRequest struct {
	OrgID string `json:"orgId"`
	contact.SaveInput
}

// SaveContact creates a contact or merges into the one with the same email.
//
//	POST /api/contacts
func (h *Handlers) SaveContact(w http.ResponseWriter, r *http.Request) {
	var req saveContactRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}
	c, created, err := h.contacts.Save(r.Context(), resolveOrgID(r, req.OrgID), req.SaveInput)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if created {
		httputil.Created(w, c)
		return
	}
	httputil.OK(w, c)
}

// ListContacts lists contacts, optionally by tag.
//
//	GET /api/contacts?tag=&limit=&offset=
func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := contact.ListFilter{Tag: q.Get("tag")}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		f.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		f.Offset = v
	}
	out, err := h.contacts.List(r.Context(), resolveOrgID(r, ""), f)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"contacts": out, "count": len(out)})
}

// GetContact returns one contact.
//
//	GET /api/contacts/{contactId}
func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	c, err := h.contacts.Get(r.Context(), resolveOrgID(r, ""), chi.URLParam(r, "contactId"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}
