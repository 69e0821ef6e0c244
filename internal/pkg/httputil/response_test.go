package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pushBody struct {
	OrgID      string   `json:"orgId" validate:"required"`
	ContactIDs []string `json:"supporterIds" validate:"required,min=1"`
}

func TestJSONSetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"id": "1"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
}

func TestInternalErrorHidesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	InternalError(rec, errors.New("pq: relation \"contacts\" does not exist"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))

	var dst pushBody
	assert.False(t, Decode(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeAcceptsEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)

	var dst pushBody
	assert.True(t, Decode(rec, req, &dst))
}

func TestDecodeAndValidateReportsJSONFieldNames(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"orgId":"org-1","supporterIds":[]}`))

	var dst pushBody
	require.False(t, DecodeAndValidate(rec, req, &dst))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Code)
	details, ok := body.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "min=1", details["supporterIds"])
}

func TestDecodeAndValidatePasses(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"orgId":"org-1","supporterIds":["c1"]}`))

	var dst pushBody
	require.True(t, DecodeAndValidate(rec, req, &dst))
	assert.Equal(t, []string{"c1"}, dst.ContactIDs)
}
