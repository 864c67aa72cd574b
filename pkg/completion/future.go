package completion

import (
	"context"
	"sync"
)

// Future is a poll-friendly handle on an async completion result. The
// input-handling thread polls it without blocking; abandoning a Future
// never cancels the shared computation behind it.
type Future struct {
	once   sync.Once
	done   chan struct{}
	result []string
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(result []string) {
	f.once.Do(func() {
		f.result = result
		close(f.done)
	})
}

// Poll returns the result and true once resolved, or nil and false while
// the computation is still running.
func (f *Future) Poll() ([]string, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return nil, false
	}
}

// Wait blocks until the result is ready or ctx is done.
func (f *Future) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
