// Package poll implements a cancellable background wait: evaluate a predicate
// on a fixed interval and run an action once it holds.
//
// Invariants:
//   - one Task is one goroutine with one predicate/action pair
//   - the action runs at most once, on the task goroutine
//   - a Task cancelled before the predicate holds never runs the action
//   - sleeping between evaluations ends as soon as the task is cancelled
//   - there is no retry cap and no backoff, callers bound the wait via Cancel
//     or the parent context
package poll

import (
	"context"
	"sync/atomic"
	"time"
)

const DefaultInterval = time.Second

type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	fired  atomic.Bool
}

// Start spawns the polling goroutine and returns immediately. A non-positive
// interval means DefaultInterval. Cancelling ctx cancels the task.
func Start(ctx context.Context, interval time.Duration, predicate func(context.Context) bool, action func()) *Task {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.run(ctx, interval, predicate, action)
	return t
}

func (t *Task) run(ctx context.Context, interval time.Duration, predicate func(context.Context) bool, action func()) {
	defer close(t.done)
	defer t.cancel()

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		if predicate(ctx) {
			// cancellation may have landed while predicate was running
			if ctx.Err() != nil {
				return
			}
			t.fired.Store(true)
			action()
			return
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Cancel stops the task. It is idempotent and can be called from any goroutine,
// including the action itself.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the polling goroutine has exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the polling goroutine exits.
func (t *Task) Wait() {
	<-t.done
}

// Fired reports whether the action was invoked.
func (t *Task) Fired() bool {
	return t.fired.Load()
}
