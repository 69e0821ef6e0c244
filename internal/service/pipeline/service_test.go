package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/repository/memory"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

const org = "org-1"

var now = time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	svc      *pipeline.Service
	notifier *recordingNotifier
	eventID  string
	contacts []string
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []bool
}

func (n *recordingNotifier) AttendeeGraduated(_ context.Context, _ *domain.AttendeeRecord, created bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, created)
}

// eventLookup adapts the memory event repo to pipeline.EventConfig.
type eventLookup struct{ repo *memory.EventRepo }

func (l eventLookup) FindEvent(ctx context.Context, orgID, id string) (*domain.Event, error) {
	e, err := l.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, nil
	}
	return e, nil
}

func newFixture(t *testing.T, stages ...domain.Stage) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	ev := &domain.Event{OrganizationID: org, Name: "Spring Gala", Stages: stages}
	require.NoError(t, store.Events().Create(ctx, ev))

	f := &fixture{store: store, eventID: ev.ID, notifier: &recordingNotifier{}}
	for i, email := range []string{"c1@example.com", "c2@example.com", "c3@example.com"} {
		c := &domain.Contact{OrganizationID: org, FirstName: "C", LastName: string(rune('1' + i)), Email: email}
		if i < 2 {
			c.Tags = []string{"donor"}
		}
		require.NoError(t, store.Contacts().Create(ctx, c))
		f.contacts = append(f.contacts, c.ID)
	}

	f.svc = newService(store, store.Contacts(), store.Attendees())
	f.svc.SetNotifier(f.notifier)
	return f
}

func newService(store *memory.Store, contacts pipeline.ContactStore, attendees pipeline.AttendeeRepository) *pipeline.Service {
	return newServiceWith(store.Pipeline(), attendees, contacts, store)
}

func newServiceWith(records pipeline.Repository, attendees pipeline.AttendeeRepository, contacts pipeline.ContactStore, store *memory.Store) *pipeline.Service {
	svc := pipeline.NewService(records, attendees, contacts, eventLookup{repo: store.Events()})
	svc.SetClock(func() time.Time { return now })
	return svc
}

func (f *fixture) push(t *testing.T, stage string, ids ...string) *pipeline.PushReport {
	t.Helper()
	rep, err := f.svc.PushContacts(context.Background(), pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: ids, Stage: stage,
	})
	require.NoError(t, err)
	return rep
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep := f.push(t, "member", f.contacts...)
	require.Len(t, rep.Success, 3)
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Skipped)
	for i, s := range rep.Success {
		assert.Equal(t, f.contacts[i], s.ContactID, "input order preserved")
		assert.Equal(t, domain.StageMember, s.Stage)
	}

	rep = f.push(t, "member", f.contacts[0])
	assert.Empty(t, rep.Success)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, pipeline.ReasonAlreadyInPipeline, rep.Skipped[0].Reason)

	recs, err := f.svc.ListByEventAndStage(ctx, org, f.eventID, "", "")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	amount := 50.0
	res, err := f.svc.Transition(ctx, org, recs[0].ID, "paid", pipeline.TransitionExtra{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, res.Graduated)
	require.NotNil(t, res.Attendee)
	assert.True(t, res.Attendee.Paid)
	assert.Equal(t, 50.0, res.Attendee.Amount)
	assert.False(t, res.Attendee.Attended)
	assert.Equal(t, recs[0].ID, res.Attendee.PipelineRecordID)

	attendees, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
	assert.Equal(t, []bool{true}, f.notifier.calls)
}

func TestPushContacts_Defaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep := f.push(t, "", f.contacts[0])
	require.Len(t, rep.Success, 1)

	rec, err := f.svc.Get(ctx, org, rep.Success[0].PipelineID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageMember, rec.Stage, "first configured stage")
	assert.Equal(t, domain.AudienceOrgMember, rec.AudienceType)
	assert.Equal(t, domain.SourceAdminAdd, rec.Source)
	assert.Equal(t, now, rec.CreatedAt)
}

func TestPushContacts_RSVPStageDerivesFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep := f.push(t, "soft_commit", f.contacts[0])
	require.Len(t, rep.Success, 1)
	rec, err := f.svc.Get(ctx, org, rep.Success[0].PipelineID)
	require.NoError(t, err)
	assert.Equal(t, domain.StageRSVPed, rec.Stage)
	assert.True(t, rec.RSVP)
	assert.Equal(t, now, *rec.RSVPDate)
}

func TestPushContacts_PaidGraduates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep := f.push(t, "paid", f.contacts[0], f.contacts[1])
	require.Len(t, rep.Success, 2)
	for _, s := range rep.Success {
		assert.True(t, s.Graduated)
	}
	attendees, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	assert.Len(t, attendees, 2)
}

func TestPushContacts_PartialFailureIsolation(t *testing.T) {
	f := newFixture(t)

	rep := f.push(t, "member", f.contacts[0], "missing", f.contacts[1], f.contacts[0])
	require.Len(t, rep.Success, 2)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, pipeline.PushError{ContactID: "missing", Error: "not found"}, rep.Errors[0])
	require.Len(t, rep.Skipped, 1, "duplicate id in one request")
	assert.Equal(t, f.contacts[0], rep.Skipped[0].ContactID)
	assert.Equal(t, rep.Success[0].PipelineID, rep.Skipped[0].PipelineID)
}

func TestPushContacts_OtherOrgContactNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger := &domain.Contact{OrganizationID: "org-2", Email: "x@example.com"}
	require.NoError(t, f.store.Contacts().Create(ctx, stranger))

	rep := f.push(t, "member", stranger.ID)
	assert.Empty(t, rep.Success)
	require.Len(t, rep.Errors, 1)
}

func TestPushContacts_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		req  pipeline.PushRequest
		want error
	}{
		{"missing org", pipeline.PushRequest{EventID: f.eventID, ContactIDs: f.contacts}, pipeline.ErrMissingOrg},
		{"missing event", pipeline.PushRequest{OrgID: org, ContactIDs: f.contacts}, pipeline.ErrMissingEvent},
		{"no contacts", pipeline.PushRequest{OrgID: org, EventID: f.eventID}, pipeline.ErrNoContacts},
		{"unknown event", pipeline.PushRequest{OrgID: org, EventID: "nope", ContactIDs: f.contacts}, pipeline.ErrNotFound},
		{"invalid stage", pipeline.PushRequest{OrgID: org, EventID: f.eventID, ContactIDs: f.contacts, Stage: "attended"}, pipeline.ErrInvalidStage},
		{"invalid audience", pipeline.PushRequest{OrgID: org, EventID: f.eventID, ContactIDs: f.contacts, AudienceType: "press"}, pipeline.ErrInvalidAudienceType},
		{"invalid source", pipeline.PushRequest{OrgID: org, EventID: f.eventID, ContactIDs: f.contacts, Source: "fax"}, pipeline.ErrInvalidSource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep, err := f.svc.PushContacts(ctx, tc.req)
			assert.Nil(t, rep)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	recs, err := f.svc.ListByEventAndStage(ctx, org, f.eventID, "", "")
	require.NoError(t, err)
	assert.Empty(t, recs, "no per-item work after a failed precondition")
}

func TestPushContacts_AudienceTypesAreSeparateRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, aud := range []string{"org_member", "friend_spouse"} {
		rep, err := f.svc.PushContacts(ctx, pipeline.PushRequest{
			OrgID: org, EventID: f.eventID, ContactIDs: f.contacts[:1], AudienceType: aud,
		})
		require.NoError(t, err)
		assert.Len(t, rep.Success, 1, aud)
	}

	recs, err := f.svc.ListByEventAndStage(ctx, org, f.eventID, "friend_spouse", "")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestPushAll(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep, err := f.svc.PushAll(ctx, org, f.eventID, "", "")
	require.NoError(t, err)
	require.Len(t, rep.Success, 3)

	rec, err := f.svc.Get(ctx, org, rep.Success[0].PipelineID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBulkImport, rec.Source)

	rep, err = f.svc.PushAll(ctx, org, f.eventID, "", "")
	require.NoError(t, err)
	assert.Empty(t, rep.Success)
	assert.Len(t, rep.Skipped, 3)
}

func TestPushAll_EmptyOrg(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ev := &domain.Event{OrganizationID: "empty-org", Name: "Quiet"}
	require.NoError(t, store.Events().Create(ctx, ev))
	svc := newService(store, store.Contacts(), store.Attendees())

	rep, err := svc.PushAll(ctx, "empty-org", ev.ID, "", "")
	require.NoError(t, err)
	assert.NotNil(t, rep.Success)
	assert.Empty(t, rep.Success)
	assert.Empty(t, rep.Errors)
	assert.Empty(t, rep.Skipped)
}

func TestPushByTag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	rep, err := f.svc.PushByTag(ctx, org, f.eventID, []string{" Donor "}, "", "")
	require.NoError(t, err)
	require.Len(t, rep.Success, 2)

	rec, err := f.svc.Get(ctx, org, rep.Success[0].PipelineID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceTagFilter, rec.Source)
	assert.Equal(t, []string{"donor"}, rec.Tags)

	_, err = f.svc.PushByTag(ctx, org, f.eventID, nil, "", "")
	assert.ErrorIs(t, err, pipeline.ErrNoTags)
}

// racingRepo simulates another writer creating the same key between the
// existence check and the insert.
type racingRepo struct {
	*memory.PipelineRepo
	once sync.Once
}

func (r *racingRepo) Create(ctx context.Context, rec *domain.PipelineRecord) error {
	r.once.Do(func() {
		winner := *rec
		winner.ID = "winner"
		_ = r.PipelineRepo.Create(ctx, &winner)
	})
	return r.PipelineRepo.Create(ctx, rec)
}

func TestPushContacts_LostRaceIsSkipped(t *testing.T) {
	f := newFixture(t)
	svc := newServiceWith(&racingRepo{PipelineRepo: f.store.Pipeline()}, f.store.Attendees(), f.store.Contacts(), f.store)

	rep, err := svc.PushContacts(context.Background(), pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: f.contacts[:1],
	})
	require.NoError(t, err)
	assert.Empty(t, rep.Success)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "winner", rep.Skipped[0].PipelineID)
}

// flakyAttendees fails every attendee insert.
type flakyAttendees struct{ *memory.AttendeeRepo }

func (flakyAttendees) Create(context.Context, *domain.AttendeeRecord) error {
	return errors.New("disk full")
}

func TestPushContacts_GraduationFailureKeepsSuccess(t *testing.T) {
	f := newFixture(t)
	svc := newService(f.store, f.store.Contacts(), flakyAttendees{f.store.Attendees()})

	rep, err := svc.PushContacts(context.Background(), pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: f.contacts[:2], Stage: "paid",
	})
	require.NoError(t, err)
	require.Len(t, rep.Success, 2)
	assert.False(t, rep.Success[0].Graduated)
	require.Len(t, rep.Errors, 2)
	assert.Contains(t, rep.Errors[0].Error, "graduation failed")
}

func TestTransition_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "member", f.contacts[0])
	id := rep.Success[0].PipelineID

	_, err := f.svc.Transition(ctx, org, "nope", "paid", pipeline.TransitionExtra{})
	var nf *pipeline.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "pipeline record", nf.Resource)

	_, err = f.svc.Transition(ctx, "org-2", id, "paid", pipeline.TransitionExtra{})
	assert.ErrorIs(t, err, pipeline.ErrNotFound, "records are org scoped")

	before, err := f.svc.Get(ctx, org, id)
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, org, id, "checked_in", pipeline.TransitionExtra{})
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)
	after, err := f.svc.Get(ctx, org, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestTransition_NonPaidDoesNotGraduate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "member", f.contacts[0])

	res, err := f.svc.Transition(ctx, org, rep.Success[0].PipelineID, "rsvped", pipeline.TransitionExtra{})
	require.NoError(t, err)
	assert.False(t, res.Graduated)
	assert.Nil(t, res.Attendee)
	assert.True(t, res.Record.RSVP)
}

func TestGraduate_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "paid", f.contacts[0])
	id := rep.Success[0].PipelineID

	first, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	require.Len(t, first, 1)

	a, err := f.svc.Graduate(ctx, org, id)
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, first[0].ID, a.ID)

	all, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, []bool{true, false}, f.notifier.calls)
}

func TestGraduate_MissingOrUnpaid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "member", f.contacts[0])

	a, err := f.svc.Graduate(ctx, org, "nope")
	assert.NoError(t, err)
	assert.Nil(t, a)

	a, err = f.svc.Graduate(ctx, org, rep.Success[0].PipelineID)
	assert.NoError(t, err)
	assert.Nil(t, a)
}

func TestGraduate_PreservesAttendance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "paid", f.contacts[0])

	checked, err := f.svc.CheckIn(ctx, org, f.eventID, f.contacts[0])
	require.NoError(t, err)
	assert.True(t, checked.Attended)

	amount := 75.0
	_, err = f.svc.Patch(ctx, org, rep.Success[0].PipelineID, pipeline.PatchInput{Amount: &amount})
	require.NoError(t, err)

	all, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Attended)
	assert.NotNil(t, all[0].AttendanceDate)
	assert.Equal(t, 75.0, all[0].Amount)
}

// conflictAttendees reports a uniqueness conflict after another writer
// inserted the attendee.
type conflictAttendees struct {
	*memory.AttendeeRepo
}

func (c conflictAttendees) Create(ctx context.Context, a *domain.AttendeeRecord) error {
	winner := *a
	winner.Amount = 1
	if err := c.AttendeeRepo.Create(ctx, &winner); err != nil {
		return err
	}
	return pipeline.ErrAttendeeExists
}

func TestGraduate_ConflictUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "member", f.contacts[0])
	svc := newService(f.store, f.store.Contacts(), conflictAttendees{f.store.Attendees()})

	amount := 40.0
	res, err := svc.Transition(ctx, org, rep.Success[0].PipelineID, "paid", pipeline.TransitionExtra{Amount: &amount})
	require.NoError(t, err)
	require.NotNil(t, res.Attendee)
	assert.Equal(t, 40.0, res.Attendee.Amount)

	all, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 40.0, all[0].Amount)
}

func TestPatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rep := f.push(t, "rsvped", f.contacts[0])
	id := rep.Success[0].PipelineID

	rsvp := false
	tags := []string{"Table-4", "table-4"}
	party := 2
	score := 7
	res, err := f.svc.Patch(ctx, org, id, pipeline.PatchInput{
		RSVP:            &rsvp,
		Tags:            &tags,
		Notes:           &domain.PipelineNotes{SpouseOrOther: "Sam", HowManyInParty: &party},
		EngagementScore: &score,
	})
	require.NoError(t, err)
	assert.False(t, res.Record.RSVP)
	assert.Nil(t, res.Record.RSVPDate)
	assert.Equal(t, []string{"table-4"}, res.Record.Tags)
	assert.Equal(t, "Sam", res.Record.Notes.SpouseOrOther)
	assert.Equal(t, 7, res.Record.EngagementScore)
	assert.False(t, res.Graduated)

	stage := "paid"
	amount := 120.0
	res, err = f.svc.Patch(ctx, org, id, pipeline.PatchInput{Stage: &stage, Amount: &amount})
	require.NoError(t, err)
	assert.True(t, res.Graduated)
	assert.Equal(t, 120.0, res.Attendee.Amount)

	stage = "nope"
	_, err = f.svc.Patch(ctx, org, id, pipeline.PatchInput{Stage: &stage})
	assert.ErrorIs(t, err, pipeline.ErrInvalidStage)
}

func TestPatch_AmountWithNonPaidStage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.push(t, "member", f.contacts[0]).Success[0].PipelineID

	stage := "rsvped"
	amount := 30.0
	res, err := f.svc.Patch(ctx, org, id, pipeline.PatchInput{Stage: &stage, Amount: &amount})
	require.NoError(t, err)
	assert.Equal(t, domain.StageRSVPed, res.Record.Stage)
	assert.Equal(t, 30.0, res.Record.Amount)
	assert.False(t, res.Graduated)

	stored, err := f.svc.Get(ctx, org, id)
	require.NoError(t, err)
	assert.Equal(t, 30.0, stored.Amount)
}

func TestPatch_TagsOnlyDoesNotRegraduate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := f.push(t, "paid", f.contacts[0]).Success[0].PipelineID
	require.Equal(t, []bool{true}, f.notifier.calls)

	tags := []string{"table-9"}
	res, err := f.svc.Patch(ctx, org, id, pipeline.PatchInput{Tags: &tags})
	require.NoError(t, err)
	assert.False(t, res.Graduated)
	assert.Equal(t, []string{"table-9"}, res.Record.Tags)
	assert.Equal(t, []bool{true}, f.notifier.calls)

	amount := 60.0
	res, err = f.svc.Patch(ctx, org, id, pipeline.PatchInput{Amount: &amount})
	require.NoError(t, err)
	assert.True(t, res.Graduated)
	assert.Equal(t, 60.0, res.Attendee.Amount)
	assert.Equal(t, []bool{true, false}, f.notifier.calls)
}

func TestGraduate_SecondAudienceKeepsPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	memberRep, err := f.svc.PushContacts(ctx, pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: f.contacts[:1],
		AudienceType: string(domain.AudienceOrgMember), Stage: "member",
	})
	require.NoError(t, err)
	memberID := memberRep.Success[0].PipelineID

	amount := 50.0
	res, err := f.svc.Transition(ctx, org, memberID, "paid", pipeline.TransitionExtra{Amount: &amount})
	require.NoError(t, err)
	require.NotNil(t, res.Attendee)
	assert.Equal(t, 50.0, res.Attendee.Amount)

	spouseRep, err := f.svc.PushContacts(ctx, pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: f.contacts[:1],
		AudienceType: string(domain.AudienceFriendSpouse), Stage: "paid",
	})
	require.NoError(t, err)
	require.Len(t, spouseRep.Success, 1)
	assert.NotEqual(t, memberID, spouseRep.Success[0].PipelineID)

	all, err := f.svc.ListAttendees(ctx, org, f.eventID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 50.0, all[0].Amount)
	assert.Equal(t, memberID, all[0].PipelineRecordID)
	assert.True(t, all[0].Paid)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, domain.StageMember, domain.StageSoftCommit, domain.StagePaid, domain.StageAttended)
	f.push(t, "member", f.contacts[0], f.contacts[1])
	f.push(t, "rsvped", f.contacts[2])

	sum, err := f.svc.Summary(ctx, org, f.eventID)
	require.NoError(t, err)
	assert.Equal(t, []pipeline.StageCount{
		{Stage: domain.StageMember, Count: 2},
		{Stage: domain.StageRSVPed, Count: 1},
		{Stage: domain.StagePaid, Count: 0},
		{Stage: domain.StageAttended, Count: 0},
	}, sum)

	_, err = f.svc.Summary(ctx, org, "nope")
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
}

func TestGraduatePending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	flaky := newService(f.store, f.store.Contacts(), flakyAttendees{f.store.Attendees()})
	_, err := flaky.PushContacts(ctx, pipeline.PushRequest{
		OrgID: org, EventID: f.eventID, ContactIDs: f.contacts, Stage: "paid",
	})
	require.NoError(t, err)

	n, err := f.svc.GraduatePending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.svc.GraduatePending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.svc.GraduatePending(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}
