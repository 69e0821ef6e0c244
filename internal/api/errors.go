package api

import (
	"errors"
	"net/http"

	"github.com/ignite/event-crm/internal/pkg/httputil"
	"github.com/ignite/event-crm/internal/service/contact"
	"github.com/ignite/event-crm/internal/service/event"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

var badRequestErrors = []error{
	pipeline.ErrInvalidStage,
	pipeline.ErrMissingOrg,
	pipeline.ErrMissingEvent,
	pipeline.ErrNoContacts,
	pipeline.ErrNoTags,
	pipeline.ErrInvalidAudienceType,
	pipeline.ErrInvalidSource,
	contact.ErrMissingOrg,
	contact.ErrMissingEmail,
	event.ErrMissingOrg,
	event.ErrMissingName,
	event.ErrInvalidStage,
	event.ErrInvalidAudience,
}

var notFoundErrors = []error{
	pipeline.ErrNotFound,
	contact.ErrNotFound,
	event.ErrNotFound,
}

// respondServiceError maps a service error onto an HTTP status. Anything
// unrecognised is a 500 with a generic body; the cause is only logged.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case matchesAny(err, notFoundErrors):
		httputil.NotFound(w, err.Error())
	case matchesAny(err, badRequestErrors):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, contact.ErrDuplicateEmail):
		httputil.Error(w, http.StatusConflict, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}

func matchesAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
