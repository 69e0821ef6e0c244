package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/event-crm/internal/pkg/distlock"
	"github.com/ignite/event-crm/internal/pkg/logger"
)

// =============================================================================
// GRADUATION RECONCILER
// =============================================================================
// Graduation runs inline when a record reaches the paid stage. If that step
// fails after the stage change was saved, the record is paid but has no
// attendee. This worker periodically finds such records and graduates them.
// A distributed lock keeps one instance running a batch at a time.

const (
	DefaultReconcileInterval = time.Minute
	DefaultReconcileBatch    = 200
	reconcilerLockKey        = "graduation-reconciler"
)

// Graduator graduates paid records that have no attendee yet.
type Graduator interface {
	GraduatePending(ctx context.Context, limit int) (int, error)
}

// GraduationReconciler drives Graduator on a ticker.
type GraduationReconciler struct {
	graduator Graduator
	newLock   func() distlock.DistLock
	workerID  string
	interval  time.Duration
	batchSize int

	// Stats
	runs      int64
	graduated int64
	skipped   int64
	errors    int64

	// Control
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewGraduationReconciler creates a reconciler. redisClient and db pick the
// lock backend as in distlock.NewLock; both may be nil.
func NewGraduationReconciler(g Graduator, redisClient *redis.Client, db *sql.DB, lockTTL time.Duration) *GraduationReconciler {
	hostname, _ := os.Hostname()
	return &GraduationReconciler{
		graduator: g,
		newLock: func() distlock.DistLock {
			return distlock.NewLock(redisClient, db, reconcilerLockKey, lockTTL)
		},
		workerID:  fmt.Sprintf("reconciler-%s-%d", hostname, time.Now().UnixNano()%10000),
		interval:  DefaultReconcileInterval,
		batchSize: DefaultReconcileBatch,
	}
}

// SetInterval overrides the tick interval.
func (r *GraduationReconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// SetBatchSize overrides the number of records handled per run.
func (r *GraduationReconciler) SetBatchSize(n int) {
	if n > 0 {
		r.batchSize = n
	}
}

// Start begins the polling loop. It returns an error if already running.
func (r *GraduationReconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	ctx, r.cancel = context.WithCancel(ctx)

	logger.Info("graduation reconciler starting", "worker_id", r.workerID, "interval", r.interval.String())

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop gracefully stops the reconciler and waits for an in-flight run.
func (r *GraduationReconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	runs, graduated, skipped, errs := r.Stats()
	logger.Info("graduation reconciler stopped",
		"runs", runs, "graduated", graduated, "skipped", skipped, "errors", errs)
}

func (r *GraduationReconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = r.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single batch under the lock. It returns 0 and no error
// when another instance holds the lock.
func (r *GraduationReconciler) RunOnce(ctx context.Context) (int, error) {
	var n int
	err := distlock.Do(ctx, r.newLock(), func(ctx context.Context) error {
		var err error
		n, err = r.graduator.GraduatePending(ctx, r.batchSize)
		return err
	})

	switch {
	case errors.Is(err, distlock.ErrNotAcquired):
		atomic.AddInt64(&r.skipped, 1)
		logger.Debug("graduation reconciler lock held elsewhere", "worker_id", r.workerID)
		return 0, nil
	case err != nil:
		atomic.AddInt64(&r.errors, 1)
		logger.Error("graduation reconciler run failed", "worker_id", r.workerID, "error", err)
		return n, err
	}

	atomic.AddInt64(&r.runs, 1)
	atomic.AddInt64(&r.graduated, int64(n))
	if n > 0 {
		logger.Info("graduation reconciler graduated records", "count", n)
	}
	return n, nil
}

// Stats returns completed runs, records graduated, runs skipped for the
// lock and failed runs.
func (r *GraduationReconciler) Stats() (runs, graduated, skipped, errs int64) {
	return atomic.LoadInt64(&r.runs), atomic.LoadInt64(&r.graduated),
		atomic.LoadInt64(&r.skipped), atomic.LoadInt64(&r.errors)
}
