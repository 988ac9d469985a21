package document

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"livedom/dom/common"
)

func TestLock_FIFO(t *testing.T) {
	m := NewLockManager(false, zaptest.NewLogger(t))
	ctx := context.Background()

	a, b, c := common.ContextID("a"), common.ContextID("b"), common.ContextID("c")

	require.NoError(t, m.Acquire(ctx, a))

	var mu sync.Mutex
	var order []common.ContextID
	var wg sync.WaitGroup

	acquire := func(cid common.ContextID) {
		defer wg.Done()
		assert.NoError(t, m.Acquire(ctx, cid))
		mu.Lock()
		order = append(order, cid)
		mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		m.Release(cid)
	}

	wg.Add(1)
	go acquire(b)
	assert.Eventually(t, func() bool { return m.Len() == 2 }, time.Second, time.Millisecond)

	wg.Add(1)
	go acquire(c)
	assert.Eventually(t, func() bool { return m.Len() == 3 }, time.Second, time.Millisecond)

	active, ok := m.Active()
	assert.True(t, ok)
	assert.Equal(t, a, active)

	m.Release(a)
	wg.Wait()

	assert.Equal(t, []common.ContextID{b, c}, order)
	assert.Equal(t, 0, m.Len())
}

func TestLock_Reentrant(t *testing.T) {
	m := NewLockManager(false, zaptest.NewLogger(t))
	ctx := context.Background()

	a, b := common.ContextID("a"), common.ContextID("b")

	require.NoError(t, m.Acquire(ctx, a))
	require.NoError(t, m.Acquire(ctx, a))

	acquired := make(chan struct{})
	go func() {
		if err := m.Acquire(ctx, b); err == nil {
			close(acquired)
		}
	}()
	assert.Eventually(t, func() bool { return m.Len() == 2 }, time.Second, time.Millisecond)

	// the first release keeps a active
	m.Release(a)
	select {
	case <-acquired:
		t.Fatal("b became active before a released twice")
	case <-time.After(20 * time.Millisecond):
	}

	active, _ := m.Active()
	assert.Equal(t, a, active)

	m.Release(a)
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("b never became active")
	}
	m.Release(b)
}

func TestLock_CancelledWaitReturnsStopped(t *testing.T) {
	m := NewLockManager(false, zaptest.NewLogger(t))

	a, b, c := common.ContextID("a"), common.ContextID("b"), common.ContextID("c")
	require.NoError(t, m.Acquire(context.Background(), a))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Acquire(ctx, b)
	}()
	assert.Eventually(t, func() bool { return m.Len() == 2 }, time.Second, time.Millisecond)

	cancel()
	err := <-errCh
	require.Error(t, err)

	var stopped common.ErrStopped
	require.True(t, errors.As(err, &stopped))
	assert.Equal(t, b, stopped.Context)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, m.Len())

	// the cancelled waiter does not block later contexts
	m.Release(a)
	require.NoError(t, m.Acquire(context.Background(), c))
	m.Release(c)
}

func TestLock_ReleaseWithoutAcquirePanics(t *testing.T) {
	m := NewLockManager(false, nil)
	assert.Panics(t, func() {
		m.Release("nobody")
	})
}

func TestLock_PassThrough(t *testing.T) {
	m := NewLockManager(true, nil)
	ctx := context.Background()

	require.NoError(t, m.Acquire(ctx, "a"))
	require.NoError(t, m.Acquire(ctx, "b"))
	assert.Equal(t, 0, m.Len())

	assert.NotPanics(t, func() {
		m.Release("a")
		m.Release("never")
	})
}

func TestDocument_WithLockAndGuard(t *testing.T) {
	doc := newTestDocument(t)
	ctx := context.Background()

	guard, err := doc.Lock(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, common.ContextID("a"), guard.Context())

	// reentry through WithLock while the guard is held
	called := false
	err = doc.WithLock(ctx, "a", func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, 1, doc.Locks().Len())

	guard.Release()
	guard.Release()
	assert.Equal(t, 0, doc.Locks().Len())

	sentinel := errors.New("failed")
	err = doc.WithLock(ctx, "b", func() error { return sentinel })
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 0, doc.Locks().Len())
}
