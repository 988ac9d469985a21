package common

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID_UniqueAcrossGoroutines(t *testing.T) {
	const workers = 8
	const perWorker = 200

	var mutex sync.Mutex
	seen := make(map[string]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id := GenerateID("test-unique")
				mutex.Lock()
				seen[id] = true
				mutex.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestGenerateID_NamespacesAreIndependent(t *testing.T) {
	a := GenerateID("test-ns-a")
	b := GenerateID("test-ns-b")
	assert.Equal(t, "1", a)
	assert.Equal(t, "1", b)
	assert.Equal(t, "2", GenerateID("test-ns-a"))
}

func TestNewContextID(t *testing.T) {
	a := NewContextID()
	b := NewContextID()
	require.NotEqual(t, NilContextID, a)
	assert.NotEqual(t, a, b)
}

func TestErrStopped_Unwrap(t *testing.T) {
	err := ErrStopped{Context: "ctx-1", Cause: context.Canceled}
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Contains(t, err.Error(), "ctx-1")

	var stopped ErrStopped
	assert.True(t, errors.As(error(err), &stopped))
}
