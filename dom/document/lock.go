package document

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"livedom/dom/common"
)

type lockEntry struct {
	context common.ContextID
	count   int
	active  bool
	ready   chan struct{}
}

// LockManager is the per-context lock table of a Document.
// Contexts are served in FIFO order; a context that already holds or waits
// for the lock re-enters without queueing.
type LockManager struct {
	mutex       sync.Mutex
	queue       []*lockEntry
	passThrough bool
	logger      *zap.Logger
}

// NewLockManager creates a LockManager. In pass-through mode Acquire and
// Release do nothing.
func NewLockManager(passThrough bool, logger *zap.Logger) *LockManager {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LockManager{
		passThrough: passThrough,
		logger:      logger,
	}
}

// Acquire blocks until cid is the active context.
// If ctx is done while waiting, the entry leaves the queue and an ErrStopped
// carrying the context error is returned.
func (m *LockManager) Acquire(ctx context.Context, cid common.ContextID) error {
	if m.passThrough {
		return nil
	}

	m.mutex.Lock()

	// reentrant acquisition never queues
	if e := m.find(cid); e != nil {
		e.count++
		m.mutex.Unlock()
		return nil
	}

	e := &lockEntry{
		context: cid,
		count:   1,
		ready:   make(chan struct{}),
	}
	m.queue = append(m.queue, e)
	if len(m.queue) == 1 {
		m.activate(e)
		m.mutex.Unlock()
		return nil
	}
	position := len(m.queue) - 1
	m.mutex.Unlock()

	m.logger.Debug("Waiting for document lock",
		zap.String("context", cid.String()),
		zap.Int("position", position))

	select {
	case <-e.ready:
		return nil
	case <-ctx.Done():
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	e.count--
	if e.count == 0 {
		m.remove(e)
	}

	return common.ErrStopped{Context: cid, Cause: ctx.Err()}
}

// Release gives up one acquisition of cid. When the last one is released the
// next queued context becomes active.
// It panics if cid holds no acquisition.
func (m *LockManager) Release(cid common.ContextID) {
	if m.passThrough {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	e := m.find(cid)
	if e == nil {
		panic(fmt.Sprintf("document lock released without acquire: %s", cid))
	}

	e.count--
	if e.count > 0 {
		return
	}
	m.remove(e)
}

// Active returns the context currently holding the lock.
func (m *LockManager) Active() (common.ContextID, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if len(m.queue) == 0 {
		return common.NilContextID, false
	}
	return m.queue[0].context, true
}

// Len returns the number of contexts holding or waiting for the lock.
func (m *LockManager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return len(m.queue)
}

func (m *LockManager) find(cid common.ContextID) *lockEntry {
	for _, e := range m.queue {
		if e.context == cid {
			return e
		}
	}
	return nil
}

func (m *LockManager) remove(e *lockEntry) {
	for i, item := range m.queue {
		if item != e {
			continue
		}
		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		if i == 0 && len(m.queue) > 0 {
			m.activate(m.queue[0])
		}
		return
	}
}

func (m *LockManager) activate(e *lockEntry) {
	if e.active {
		return
	}
	e.active = true
	close(e.ready)
}

// Guard is a held acquisition of a Document lock.
type Guard struct {
	manager *LockManager
	context common.ContextID
	once    sync.Once
}

// Context returns the context holding the guard.
func (g *Guard) Context() common.ContextID {
	return g.context
}

// Release gives up the acquisition. Calling it more than once has no effect.
func (g *Guard) Release() {
	g.once.Do(func() {
		g.manager.Release(g.context)
	})
}
