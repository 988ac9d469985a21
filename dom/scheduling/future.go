package scheduling

import (
	"context"
	"sync"

	"livedom/dom/common"
)

// Future is the pending result of a scheduled unit.
type Future struct {
	context common.ContextID
	done    chan struct{}
	once    sync.Once

	value any
	err   error
}

func newFuture(cid common.ContextID) *Future {
	return &Future{
		context: cid,
		done:    make(chan struct{}),
	}
}

// Context returns the context id the unit runs under.
func (f *Future) Context() common.ContextID {
	return f.context
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the unit finished and returns its result.
// If ctx is done first, an ErrStopped is returned; the unit keeps running.
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, common.ErrStopped{Context: f.context, Cause: ctx.Err()}
	}
}

func (f *Future) resolve(value any, err error) {
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
	})
}
