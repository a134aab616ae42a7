package webhook

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hindsight-ai/hindsight/github"
)

const defaultRunTimeout = 5 * time.Minute

// Runner executes pipeline runs in the background with a concurrency bound,
// so webhook deliveries can be acknowledged immediately.
type Runner struct {
	dispatcher *Dispatcher
	sem        *semaphore.Weighted
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewRunner(dispatcher *Dispatcher, maxConcurrent int64, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		dispatcher: dispatcher,
		sem:        semaphore.NewWeighted(maxConcurrent),
		timeout:    defaultRunTimeout,
		logger:     logger,
	}
}

// Enqueue starts processing a parsed event in the background. The run gets
// its own timeout-bounded context, detached from the request that admitted
// the delivery.
func (r *Runner) Enqueue(event *github.Event) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background processing panicked", "panic", rec)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.logger.Error("timed out waiting for a processing slot", "error", err)
			return
		}
		defer r.sem.Release(1)

		result := r.dispatcher.Process(ctx, event)
		if result.Outcome == OutcomeFailed {
			r.logger.Error("background processing failed",
				"stage", result.Stage,
				"error", result.Err)
		}
	}()
}

// Wait blocks until all enqueued runs finish. Called during shutdown.
func (r *Runner) Wait() {
	r.wg.Wait()
}
