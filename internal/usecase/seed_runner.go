package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CoinPull/internal/domain/models"
	drepo "CoinPull/internal/domain/repository"
	"CoinPull/pkg/cache"
	applogger "CoinPull/pkg/logger"

	"github.com/google/uuid"
)

const (
	seedLockKey     = "lock:seed"
	lastSeedKey     = "seed:last"
	lastSeedTTL     = 30 * 24 * time.Hour
	lockReleaseWait = 5 * time.Second
)

type seeder interface {
	SeedMany(ctx context.Context, req models.SeedRequest, progress func(total int64)) (models.SeedResult, error)
}

// SeedRunner allows at most one seeding run at a time, in this process and, through the
// Locker, across processes sharing the same lock backend.
type SeedRunner struct {
	seeder    seeder
	locker    drepo.Locker
	kv        drepo.KeyValue
	presenter drepo.Presenter
	l         *applogger.Logger
	lockTTL   time.Duration
	now       func() time.Time

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSeedRunner creates the single-flight seed guard. locker, kv and presenter may be nil.
func NewSeedRunner(s seeder, locker drepo.Locker, kv drepo.KeyValue, presenter drepo.Presenter, l *applogger.Logger, lockTTL time.Duration) *SeedRunner {
	if l == nil {
		l = applogger.Nop()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	return &SeedRunner{
		seeder:    s,
		locker:    locker,
		kv:        kv,
		presenter: presenter,
		l:         l.Component("seed_runner"),
		lockTTL:   lockTTL,
		now:       time.Now,
	}
}

// Start launches a seeding run in the background and returns immediately. The run is
// detached from ctx's cancellation; use Cancel to stop it. models.ErrBusy means a run is
// already in flight here or in another process.
func (r *SeedRunner) Start(ctx context.Context, req models.SeedRequest) error {
	if err := r.begin(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	r.mu.Lock()
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer r.finish(runCtx, cancel)
		_, _ = r.execute(runCtx, req)
	}()
	return nil
}

// Run seeds synchronously under the same guard as Start. Cancelling ctx cancels the run.
func (r *SeedRunner) Run(ctx context.Context, req models.SeedRequest) (models.SeedResult, error) {
	if err := r.begin(ctx); err != nil {
		return models.SeedResult{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	defer r.finish(runCtx, cancel)

	return r.execute(runCtx, req)
}

// Cancel stops the in-flight run. It returns false when nothing is running.
func (r *SeedRunner) Cancel() bool {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel == nil {
		return false
	}
	cancel()
	r.l.Info("seed cancellation requested")
	return true
}

// Busy reports whether a run is in flight in this process.
func (r *SeedRunner) Busy() bool {
	return r.running.Load()
}

// Wait blocks until the run started by Start has finished.
func (r *SeedRunner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// LastSummary returns the summary saved by the most recent finished run, or nil.
func (r *SeedRunner) LastSummary(ctx context.Context) (*models.SeedSummary, error) {
	if r.kv == nil {
		return nil, nil
	}
	var s models.SeedSummary
	if err := r.kv.Get(ctx, lastSeedKey, &s); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load seed summary: %w", err)
	}
	return &s, nil
}

func (r *SeedRunner) begin(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return models.ErrBusy
	}
	if r.locker == nil {
		return nil
	}

	ok, err := r.locker.TryLock(ctx, seedLockKey, r.lockTTL)
	if err != nil {
		r.running.Store(false)
		return fmt.Errorf("acquire seed lock: %w", err)
	}
	if !ok {
		r.running.Store(false)
		r.l.Warn("seed lock held elsewhere")
		return models.ErrBusy
	}
	return nil
}

func (r *SeedRunner) finish(ctx context.Context, cancel context.CancelFunc) {
	cancel()
	if r.locker != nil {
		unlockCtx, done := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseWait)
		if err := r.locker.Unlock(unlockCtx, seedLockKey); err != nil {
			r.l.Warn("seed lock release failed", applogger.Error(err))
		}
		done()
	}

	r.mu.Lock()
	r.cancel = nil
	r.mu.Unlock()
	r.running.Store(false)
}

func (r *SeedRunner) execute(ctx context.Context, req models.SeedRequest) (models.SeedResult, error) {
	started := r.now().UTC()
	id := uuid.NewString()
	l := r.l.With(applogger.String("seed_id", id))
	l.Info("seed started", applogger.Strings("assets", req.AssetIDs), applogger.Int64("target_rows", req.TargetRows))
	r.status(fmt.Sprintf("seed: started for %d assets, target %d rows", len(req.AssetIDs), req.TargetRows))
	r.progress(0, req.TargetRows)

	res, err := r.seeder.SeedMany(ctx, req, func(total int64) {
		r.progress(total, req.TargetRows)
	})

	summary := models.SeedSummary{
		ID:         id,
		StartedAt:  started,
		FinishedAt: r.now().UTC(),
		Target:     req.TargetRows,
		Inserted:   res.Inserted,
		Fetched:    res.Fetched,
		Status:     seedStatus(res, err),
	}
	for _, f := range res.Failures {
		summary.Failures = append(summary.Failures, f.Status())
	}

	if err != nil && !models.IsCancelled(err) {
		l.Error("seed failed", applogger.Int64("inserted", res.Inserted), applogger.Error(err))
	} else {
		l.Info("seed finished",
			applogger.String("status", summary.Status),
			applogger.Int64("inserted", res.Inserted),
			applogger.Int("failures", len(res.Failures)))
	}

	r.status(summary.Status)
	r.save(ctx, summary)
	return res, err
}

func (r *SeedRunner) save(ctx context.Context, s models.SeedSummary) {
	if r.kv == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseWait)
	defer cancel()
	if err := r.kv.Set(saveCtx, lastSeedKey, s, lastSeedTTL); err != nil {
		r.l.Warn("seed summary not saved", applogger.Error(err))
	}
}

func (r *SeedRunner) progress(inserted, target int64) {
	if r.presenter != nil {
		r.presenter.UpdateProgress(inserted, target)
	}
}

func (r *SeedRunner) status(line string) {
	if r.presenter != nil {
		r.presenter.UpdateStatus(line)
	}
}

func seedStatus(res models.SeedResult, err error) string {
	if err != nil {
		return models.StatusLine("seed", err)
	}
	line := fmt.Sprintf("seed: inserted %d rows", res.Inserted)
	if n := len(res.Failures); n > 0 {
		line += fmt.Sprintf(", %d assets failed", n)
	}
	return line
}
