package api

import (
	"context"
	"net/http"
	"strings"
)

// OrgContextKey is the key for storing the organization ID in a request
// context.
type OrgContextKey struct{}

// OrgHeader carries the caller's organization.
const OrgHeader = "X-Organization-ID"

// OrgContextMiddleware injects the organization ID from the X-Organization-ID
// header, or the org_id query parameter, into the request context.
func OrgContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if orgID := extractOrgID(r); orgID != "" {
			r = r.WithContext(WithOrgID(r.Context(), orgID))
		}
		next.ServeHTTP(w, r)
	})
}

// WithOrgID returns a context carrying orgID.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// GetOrgIDFromContext retrieves the organization ID from context.
func GetOrgIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(OrgContextKey{}).(string); ok {
		return id
	}
	return ""
}

// resolveOrgID picks the organization for a request. An orgId in the body
// wins over the header.
func resolveOrgID(r *http.Request, bodyOrgID string) string {
	if id := strings.TrimSpace(bodyOrgID); id != "" {
		return id
	}
	return GetOrgIDFromContext(r.Context())
}

func extractOrgID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(OrgHeader)); id != "" {
		return id
	}
	return strings.TrimSpace(r.URL.Query().Get("org_id"))
}
