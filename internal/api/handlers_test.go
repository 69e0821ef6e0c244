package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/export"
	"github.com/ignite/event-crm/internal/repository/memory"
	"github.com/ignite/event-crm/internal/service/contact"
	"github.com/ignite/event-crm/internal/service/event"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

const testOrg = "org-1"

type testAPI struct {
	t        *testing.T
	handlers *Handlers
	router   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store := memory.NewStore()
	events := event.NewService(store.Events(), nil)
	contacts := contact.NewService(store.Contacts())
	svc := pipeline.NewService(store.Pipeline(), store.Attendees(), store.Contacts(), events)

	h := NewHandlers(svc, contacts, events)
	return &testAPI{t: t, handlers: h, router: SetupRoutes(h, nil)}
}

func (a *testAPI) do(method, path, org string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if org != "" {
		req.Header.Set(OrgHeader, org)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) createEvent(name string) domain.Event {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/events", testOrg, map[string]any{"name": name})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Event](a.t, rec)
}

func (a *testAPI) createContact(email string, tags ...string) domain.Contact {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/contacts", testOrg, map[string]any{"email": email, "tags": tags})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Contact](a.t, rec)
}

func TestPushTransitionAndGraduateFlow(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")
	c1 := a.createContact("one@example.com")
	c2 := a.createContact("two@example.com")
	c3 := a.createContact("three@example.com")

	path := "/api/events/" + ev.ID + "/pipeline/push"
	rec := a.do(http.MethodPost, path, "", map[string]any{
		"orgId":        testOrg,
		"supporterIds": []string{c1.ID, c2.ID, c3.ID},
		"stage":        "member",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[pipeline.PushReport](t, rec)
	require.Len(t, report.Success, 3)
	assert.Empty(t, report.Errors)
	assert.Empty(t, report.Skipped)

	rec = a.do(http.MethodPost, path, testOrg, map[string]any{"supporterIds": []string{c1.ID}})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[pipeline.PushReport](t, rec)
	assert.Empty(t, again.Success)
	require.Len(t, again.Skipped, 1)
	assert.Equal(t, pipeline.ReasonAlreadyInPipeline, again.Skipped[0].Reason)
	assert.Equal(t, report.Success[0].PipelineID, again.Skipped[0].PipelineID)

	rec = a.do(http.MethodPatch, "/api/pipeline/"+report.Success[0].PipelineID, testOrg, map[string]any{
		"stage":  "paid",
		"amount": 50,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[pipeline.TransitionResult](t, rec)
	assert.True(t, res.Graduated)
	require.NotNil(t, res.Attendee)
	assert.True(t, res.Attendee.Paid)
	assert.Equal(t, 50.0, res.Attendee.Amount)
	assert.Equal(t, c1.ID, res.Attendee.ContactID)

	rec = a.do(http.MethodGet, "/api/events/"+ev.ID+"/attendees", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Attendees []domain.AttendeeRecord `json:"attendees"`
		Count     int                     `json:"count"`
	}](t, rec)
	assert.Equal(t, 1, list.Count)

	rec = a.do(http.MethodPost, "/api/events/"+ev.ID+"/attendees/"+c1.ID+"/check-in", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	checked := decode[domain.AttendeeRecord](t, rec)
	assert.True(t, checked.Attended)
	assert.NotNil(t, checked.AttendanceDate)
}

func TestPushValidation(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")
	c := a.createContact("one@example.com")
	path := "/api/events/" + ev.ID + "/pipeline/push"

	tests := []struct {
		name string
		org  string
		body any
	}{
		{"missing org", "", map[string]any{"supporterIds": []string{c.ID}}},
		{"no contacts", testOrg, map[string]any{"supporterIds": []string{}}},
		{"unknown stage", testOrg, map[string]any{"supporterIds": []string{c.ID}, "stage": "vip"}},
		{"unknown audience", testOrg, map[string]any{"supporterIds": []string{c.ID}, "audienceType": "press"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, path, tt.org, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestPushUnknownEventIsNotFound(t *testing.T) {
	a := newTestAPI(t)
	c := a.createContact("one@example.com")

	rec := a.do(http.MethodPost, "/api/events/nope/pipeline/push", testOrg, map[string]any{"supporterIds": []string{c.ID}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPushByTagAndSummary(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")
	a.createContact("one@example.com", "donor")
	a.createContact("two@example.com", "volunteer")
	a.createContact("three@example.com", "Donor")

	rec := a.do(http.MethodPost, "/api/events/"+ev.ID+"/pipeline/push-by-tag", testOrg, map[string]any{"tags": []string{"donor"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[pipeline.PushReport](t, rec)
	assert.Len(t, report.Success, 2)

	rec = a.do(http.MethodPost, "/api/events/"+ev.ID+"/pipeline/push-all", testOrg, map[string]any{"stage": "soft_commit"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	all := decode[pipeline.PushReport](t, rec)
	assert.Len(t, all.Success, 1)
	assert.Len(t, all.Skipped, 2)

	rec = a.do(http.MethodGet, "/api/events/"+ev.ID+"/pipeline/summary", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[struct {
		Stages []pipeline.StageCount `json:"stages"`
		Total  int                   `json:"total"`
	}](t, rec)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, []pipeline.StageCount{
		{Stage: domain.StageMember, Count: 2},
		{Stage: domain.StageRSVPed, Count: 1},
		{Stage: domain.StagePaid, Count: 0},
	}, summary.Stages)

	rec = a.do(http.MethodGet, "/api/events/"+ev.ID+"/pipeline?stage=soft_commit", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Records []domain.PipelineRecord `json:"records"`
	}](t, rec)
	require.Len(t, listed.Records, 1)
	assert.True(t, listed.Records[0].RSVP)
}

func TestPatchInvalidStageLeavesRecord(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")
	c := a.createContact("one@example.com")
	rec := a.do(http.MethodPost, "/api/events/"+ev.ID+"/pipeline/push", testOrg, map[string]any{"supporterIds": []string{c.ID}})
	report := decode[pipeline.PushReport](t, rec)
	require.Len(t, report.Success, 1)
	id := report.Success[0].PipelineID

	rec = a.do(http.MethodPatch, "/api/pipeline/"+id, testOrg, map[string]any{"stage": "vip"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid stage")

	rec = a.do(http.MethodGet, "/api/pipeline/"+id, testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.PipelineRecord](t, rec)
	assert.Equal(t, domain.StageMember, got.Stage)
}

func TestPatchRejectsNegativeAmount(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodPatch, "/api/pipeline/p1", testOrg, map[string]any{"amount": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGraduateUnpaidRecord(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")
	c := a.createContact("one@example.com")
	rec := a.do(http.MethodPost, "/api/events/"+ev.ID+"/pipeline/push", testOrg, map[string]any{"supporterIds": []string{c.ID}})
	report := decode[pipeline.PushReport](t, rec)
	require.Len(t, report.Success, 1)

	rec = a.do(http.MethodPost, "/api/pipeline/"+report.Success[0].PipelineID+"/graduate", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[graduateResponse](t, rec)
	assert.False(t, out.Graduated)
	assert.Nil(t, out.Attendee)
}

func TestGetUnknownRecordIsNotFound(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/api/pipeline/missing", testOrg, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventStagesEndpoints(t *testing.T) {
	a := newTestAPI(t)
	ev := a.createEvent("Gala")

	rec := a.do(http.MethodGet, "/api/events/"+ev.ID+"/stages", testOrg, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stages":["member","rsvped","paid"]}`, rec.Body.String())

	rec = a.do(http.MethodPut, "/api/events/"+ev.ID+"/stages", testOrg, map[string]any{"stages": []string{"Member", "waitlist", "paid"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"stages":["member","waitlist","paid"]}`, rec.Body.String())

	rec = a.do(http.MethodPut, "/api/events/"+ev.ID+"/stages", testOrg, map[string]any{"stages": []string{"rsvped", "soft_commit"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEventDuplicateAudience(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodPost, "/api/events", testOrg, map[string]any{
		"name":          "Gala",
		"audienceTypes": []string{"org_member", "Org_Member"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "audience type")
	assert.NotContains(t, rec.Body.String(), "stage")
}

func TestContactUpsert(t *testing.T) {
	a := newTestAPI(t)
	first := a.createContact("Ann@Example.com", "donor")

	rec := a.do(http.MethodPost, "/api/contacts", testOrg, map[string]any{"email": "ann@example.com", "tags": []string{"volunteer"}})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[domain.Contact](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.ElementsMatch(t, []string{"donor", "volunteer"}, second.Tags)

	rec = a.do(http.MethodPost, "/api/contacts", testOrg, map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/contacts/"+first.ID, "other-org", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type fakeExporter struct {
	err error
}

func (f *fakeExporter) Export(_ context.Context, orgID, eventID string) (*export.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &export.Result{Bucket: "rosters", Key: "rosters/" + orgID + "/" + eventID + "/x.csv", Rows: 2}, nil
}

func TestExportRoster(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/events/e1/attendees/export", testOrg, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	a.handlers.SetExporter(&fakeExporter{})
	rec = a.do(http.MethodPost, "/api/events/e1/attendees/export", testOrg, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	out := decode[export.Result](t, rec)
	assert.Equal(t, "rosters/org-1/e1/x.csv", out.Key)

	a.handlers.SetExporter(&fakeExporter{err: errors.New("s3: access denied")})
	rec = a.do(http.MethodPost, "/api/events/e1/attendees/export", testOrg, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "access denied")
}

func TestBodyOrgWinsOverHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithOrgID(req.Context(), "header-org"))

	assert.Equal(t, "body-org", resolveOrgID(req, "body-org"))
	assert.Equal(t, "header-org", resolveOrgID(req, " "))
}

func TestHealthWithoutDependencies(t *testing.T) {
	a := newTestAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[HealthStatus](t, rec)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not configured", status.Checks["database"].Message)

	rec = a.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "down", Message: "check failed: refused"},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"redis":    {Status: "down", Message: "check failed: refused"},
	}))
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: "up"},
		"s3":       {Status: "down", Message: "not configured"},
	}))
}
