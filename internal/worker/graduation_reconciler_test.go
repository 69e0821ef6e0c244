package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/pkg/distlock"
	"github.com/ignite/event-crm/internal/repository/memory"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

type countingGraduator struct {
	calls int32
	n     int
	err   error
}

func (g *countingGraduator) GraduatePending(context.Context, int) (int, error) {
	atomic.AddInt32(&g.calls, 1)
	return g.n, g.err
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	g := &countingGraduator{n: 3}
	r := NewGraduationReconciler(g, client, nil, time.Minute)

	holder := distlock.NewRedisLock(client, reconcilerLockKey, time.Minute)
	ok, err := holder.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 0, atomic.LoadInt32(&g.calls))

	require.NoError(t, holder.Release(ctx))
	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	runs, graduated, skipped, errs := r.Stats()
	assert.EqualValues(t, 1, runs)
	assert.EqualValues(t, 3, graduated)
	assert.EqualValues(t, 1, skipped)
	assert.EqualValues(t, 0, errs)
}

func TestRunOnce_Error(t *testing.T) {
	g := &countingGraduator{err: errors.New("db down")}
	r := NewGraduationReconciler(g, newRedisClient(t), nil, time.Minute)

	_, err := r.RunOnce(context.Background())
	assert.EqualError(t, err, "db down")
	_, _, _, errs := r.Stats()
	assert.EqualValues(t, 1, errs)
}

func TestStartStop(t *testing.T) {
	g := &countingGraduator{}
	r := NewGraduationReconciler(g, nil, nil, time.Minute)
	r.SetInterval(10 * time.Millisecond)

	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&g.calls) >= 2 }, time.Second, 5*time.Millisecond)
	r.Stop()
	r.Stop()
}

// flakyAttendees fails every attendee insert so graduation is left pending.
type flakyAttendees struct{ *memory.AttendeeRepo }

func (flakyAttendees) Create(context.Context, *domain.AttendeeRecord) error {
	return errors.New("insert failed")
}

type eventLookup struct{ repo *memory.EventRepo }

func (l eventLookup) FindEvent(ctx context.Context, orgID, id string) (*domain.Event, error) {
	e, err := l.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, nil
	}
	return e, nil
}

func TestReconciler_GraduatesPendingRecords(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	ev := &domain.Event{OrganizationID: "org-1", Name: "Gala"}
	require.NoError(t, store.Events().Create(ctx, ev))
	c := &domain.Contact{OrganizationID: "org-1", Email: "a@example.com"}
	require.NoError(t, store.Contacts().Create(ctx, c))

	failing := pipeline.NewService(store.Pipeline(), flakyAttendees{store.Attendees()}, store.Contacts(), eventLookup{store.Events()})
	rep, err := failing.PushContacts(ctx, pipeline.PushRequest{OrgID: "org-1", EventID: ev.ID, ContactIDs: []string{c.ID}, Stage: "paid"})
	require.NoError(t, err)
	require.Len(t, rep.Errors, 1)

	svc := pipeline.NewService(store.Pipeline(), store.Attendees(), store.Contacts(), eventLookup{store.Events()})
	r := NewGraduationReconciler(svc, newRedisClient(t), nil, time.Minute)

	n, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	attendees, err := svc.ListAttendees(ctx, "org-1", ev.ID)
	require.NoError(t, err)
	assert.Len(t, attendees, 1)
}
