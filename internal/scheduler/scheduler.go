// Package scheduler runs the periodic background jobs: the linear feed
// scan, the campaign scan tick, and the enrich-and-deliver pass.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one periodic unit of work. Run errors are logged; the loop keeps
// going.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler drives each registered job on its own ticker.
type Scheduler struct {
	jobs []Job
	log  *slog.Logger
}

// New creates a Scheduler.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{log: log}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		s.log.Warn("job disabled, non-positive interval", "job", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// Run starts every job loop and blocks until ctx is cancelled and all
// loops have stopped. Each job runs once immediately, then on its ticker.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		job := job
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runLoop(ctx, job)
		}()
	}
	wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	s.runOnce(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, job)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error("job failed", "job", job.Name, "error", err)
		return
	}
	s.log.Debug("job complete", "job", job.Name, "elapsed", time.Since(start))
}
