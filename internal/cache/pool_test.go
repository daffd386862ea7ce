package cache

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := NewRebuildPool(2, 8, nil)
	pool.Start()

	var ran int32
	for i := 0; i < 5; i++ {
		require.True(t, pool.Submit(func() { atomic.AddInt32(&ran, 1) }))
	}
	pool.Stop()

	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestPoolRejectsWhenQueueFull(t *testing.T) {
	pool := NewRebuildPool(1, 1, nil)

	// Not started yet, so the single queue slot fills immediately.
	assert.True(t, pool.Submit(func() {}))
	assert.False(t, pool.Submit(func() {}))

	pool.Start()
	pool.Stop()
}

func TestPoolRejectsSubmitAfterStop(t *testing.T) {
	pool := NewRebuildPool(1, 8, nil)
	pool.Start()
	pool.Stop()

	assert.False(t, pool.Submit(func() { t.Fatal("job ran after stop") }))
}

func TestPoolStopWaitsForInflightJobs(t *testing.T) {
	pool := NewRebuildPool(1, 8, nil)
	pool.Start()

	done := make(chan struct{})
	require.True(t, pool.Submit(func() {
		time.Sleep(50 * time.Millisecond)
		close(done)
	}))

	pool.Stop()
	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the in-flight job finished")
	}
}
