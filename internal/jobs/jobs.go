package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/motheroflaunch/backend/internal/launch"
	"github.com/motheroflaunch/backend/internal/logger"
	"github.com/motheroflaunch/backend/internal/metrics"
	"github.com/motheroflaunch/backend/internal/premium"
	"github.com/motheroflaunch/backend/internal/views"
	"go.uber.org/zap"
)

// Job is a task run on a fixed interval
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner executes background jobs until stopped. Each job runs once at
// start-up and then on its own ticker, in its own goroutine.
type Runner struct {
	jobs   []Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner creates an idle runner
func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{ctx: ctx, cancel: cancel}
}

// Add registers a job. Jobs with a non-positive interval are skipped.
func (r *Runner) Add(job Job) {
	if job.Interval <= 0 {
		logger.Log.Info("Background job disabled", zap.String("job", job.Name))
		return
	}
	r.jobs = append(r.jobs, job)
}

// Start launches every registered job
func (r *Runner) Start() {
	for _, job := range r.jobs {
		logger.Log.Info("Starting background job",
			zap.String("job", job.Name),
			zap.Duration("interval", job.Interval),
		)
		r.wg.Add(1)
		go r.loop(job)
	}
}

// Stop cancels all jobs and waits for in-flight runs to return
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) loop(job Job) {
	defer r.wg.Done()

	r.runOnce(job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runOnce(job)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runner) runOnce(job Job) {
	start := time.Now()
	err := job.Run(r.ctx)
	if err != nil && r.ctx.Err() != nil {
		// Shutting down; the run was interrupted, not failed
		return
	}
	metrics.Get().BackgroundJobRuns.WithLabelValues(job.Name, metrics.Result(err)).Inc()
	if err != nil {
		logger.Log.Error("Background job failed",
			zap.String("job", job.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
	}
}

// FinalizeLaunches closes every launch day that has ended
func FinalizeLaunches(svc *launch.Service, every time.Duration) Job {
	return Job{
		Name:     "finalize_launches",
		Interval: every,
		Run: func(ctx context.Context) error {
			dates, err := svc.FinalizeDue(ctx)
			if len(dates) > 0 {
				logger.Log.Info("Finalized launch days", zap.Strings("dates", dates))
			}
			return err
		},
	}
}

// ExpirePremium marks lapsed premium grants expired
func ExpirePremium(svc *premium.Service, every time.Duration, now func() time.Time) Job {
	return Job{
		Name:     "expire_premium",
		Interval: every,
		Run: func(ctx context.Context) error {
			n, err := svc.ExpireDue(ctx, now())
			if n > 0 {
				logger.Log.Info("Expired premium grants", zap.Int64("count", n))
			}
			return err
		},
	}
}

// FlushViews moves buffered page views into the database
func FlushViews(counter *views.Counter, every time.Duration) Job {
	return Job{
		Name:     "flush_views",
		Interval: every,
		Run: func(ctx context.Context) error {
			n, err := counter.Flush(ctx)
			if n > 0 {
				logger.Log.Debug("Flushed page views", zap.Int64("views", n))
			}
			return err
		},
	}
}
