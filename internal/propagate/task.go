package propagate

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/lachgar03/crm-project/internal/tenantctx"
)

var errUpstreamStatus = errors.New("upstream returned a server error")

// ErrClosed is returned by Submit after the runner has been shut down.
var ErrClosed = errors.New("task runner is closed")

// Runner executes background tasks with the submitting request's tenant
// binding installed. Concurrency is capped with a weighted semaphore so
// a burst of submissions cannot exhaust the process.
type Runner struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewRunner creates a Runner allowing at most limit concurrent tasks.
func NewRunner(limit int) *Runner {
	if limit < 1 {
		limit = 1
	}
	return &Runner{sem: semaphore.NewWeighted(int64(limit))}
}

// Submit snapshots the ambient bindings from ctx and runs fn on its own
// goroutine with those bindings installed on a fresh context. The task
// outlives the submitting request: cancelling ctx after Submit returns
// does not cancel the task. Submit blocks only while waiting for a
// concurrency slot.
func (r *Runner) Submit(ctx context.Context, name string, fn func(context.Context) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.wg.Done()
		return err
	}

	snap := tenantctx.Capture(ctx)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)

		taskCtx := snap.Install(context.Background())
		if err := fn(taskCtx); err != nil {
			slog.Error("background task failed", "task", name, "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting new tasks and waits for in-flight tasks to
// finish or ctx to expire, whichever comes first.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
