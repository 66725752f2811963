// Package background runs keyed fire-and-forget tasks with bounded
// concurrency. Triggering a key that is already running is a no-op, so
// duplicate triggers never spawn duplicate work.
package background

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/sweetpotato0/notelm/pkg/logging"
)

// Task is a unit of background work. Failures are the task's own
// responsibility to persist; the registry only logs them.
type Task func(ctx context.Context) error

// Registry tracks in-flight tasks by key.
type Registry struct {
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}
	wg       sync.WaitGroup
}

// NewRegistry creates a registry allowing at most maxConcurrent tasks
// to run at once.
func NewRegistry(maxConcurrent int) *Registry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Registry{
		logger:   logging.WithComponent("background"),
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		inflight: make(map[string]struct{}),
	}
}

// Trigger starts the task under the given key unless one is already
// running for it. It returns true if the task was started. The task
// runs detached from the caller's context.
func (r *Registry) Trigger(key string, task Task) bool {
	r.mu.Lock()
	if _, running := r.inflight[key]; running {
		r.mu.Unlock()
		return false
	}
	r.inflight[key] = struct{}{}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.inflight, key)
			r.mu.Unlock()
		}()

		ctx := context.Background()
		if err := r.sem.Acquire(ctx, 1); err != nil {
			r.logger.Error("acquire slot", "key", key, "error", err)
			return
		}
		defer r.sem.Release(1)

		if err := task(ctx); err != nil {
			r.logger.Error("background task failed", "key", key, "error", err)
		}
	}()
	return true
}

// Running reports whether a task is in flight for the key.
func (r *Registry) Running(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inflight[key]
	return ok
}

// Wait blocks until every in-flight task has finished. Task errors are
// logged, never returned, so Wait always succeeds.
func (r *Registry) Wait() {
	r.wg.Wait()
}
