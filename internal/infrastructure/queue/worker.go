package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/dbpull/internal/domain"
)

// Handler runs one queued pull.
type Handler func(ctx context.Context, req domain.JobRequest) (*domain.Outcome, error)

// Worker runs queued jobs one at a time, oldest first.
type Worker struct {
	store    *Store
	handler  Handler
	interval time.Duration
	logger   domain.Logger
}

func NewWorker(store *Store, handler Handler, interval time.Duration, logger domain.Logger) *Worker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Worker{
		store:    store,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until ctx is done. A job in progress when ctx ends is still
// recorded.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.store.Recover(ctx); err != nil {
		return fmt.Errorf("recover interrupted jobs: %w", err)
	} else if n > 0 {
		w.logger.Warnf("Marked %d interrupted job(s) as failed", n)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := w.store.Claim(ctx)
		if err != nil {
			w.logger.Errorf("Failed to claim job: %v", err)
			return
		}
		if job == nil {
			return
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *Job) {
	w.logger.Infof("Starting job #%d (trigger: %s)", job.ID, job.Trigger)

	outcome, err := w.run(ctx, job)
	if err != nil {
		w.logger.Errorf("Job #%d failed: %v", job.ID, err)
	} else {
		w.logger.Infof("Job #%d succeeded", job.ID)
	}

	if ferr := w.store.Finish(context.WithoutCancel(ctx), job.ID, outcome, err); ferr != nil {
		w.logger.Errorf("Failed to record result of job #%d: %v", job.ID, ferr)
	}
}

func (w *Worker) run(ctx context.Context, job *Job) (outcome *domain.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	return w.handler(ctx, job.Request())
}
