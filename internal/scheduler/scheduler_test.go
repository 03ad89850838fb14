package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeline/signalbus/pkg/errors"
)

func newTestScheduler(workers, queue int) *Scheduler {
	nop := zerolog.Nop()
	return New(Options{WorkerCount: workers, QueueSize: queue, Logger: &nop})
}

func TestScheduler_ExecutesTasks(t *testing.T) {
	s := newTestScheduler(2, 16)
	defer func() { _ = s.Stop(context.Background()) }()

	var done sync.WaitGroup
	var count atomic.Int32

	for i := 0; i < 10; i++ {
		done.Add(1)
		err := s.Submit("document", func() {
			count.Add(1)
			done.Done()
		})
		require.NoError(t, err)
	}

	done.Wait()
	assert.Equal(t, int32(10), count.Load())
	assert.Equal(t, uint64(10), s.Stats().Submitted)
}

func TestScheduler_LaneOrdering(t *testing.T) {
	s := newTestScheduler(4, 64)
	defer func() { _ = s.Stop(context.Background()) }()

	var mu sync.Mutex
	var got []int
	var done sync.WaitGroup

	for i := 0; i < 50; i++ {
		i := i
		done.Add(1)
		require.NoError(t, s.Submit("command", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			done.Done()
		}))
	}

	done.Wait()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v, "tasks on one lane must run in submission order")
	}
}

func TestScheduler_DropsOldestWhenFull(t *testing.T) {
	s := newTestScheduler(1, 2)
	defer func() { _ = s.Stop(context.Background()) }()

	// Occupy the single worker so queued tasks cannot drain.
	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, s.Submit("error", func() {
		close(started)
		<-block
	}))
	<-started

	var mu sync.Mutex
	var ran []int
	submit := func(i int) {
		_ = s.Submit("error", func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
		})
	}

	// Fill the queue, then overflow it. The oldest queued task (1) must be
	// evicted in favor of the newest (3).
	submit(1)
	submit(2)
	submit(3)

	assert.GreaterOrEqual(t, s.Stats().Dropped, uint64(1))

	close(block)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ran) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 3}, ran)
}

func TestScheduler_PanicIsolation(t *testing.T) {
	s := newTestScheduler(1, 8)
	defer func() { _ = s.Stop(context.Background()) }()

	ran := make(chan struct{})
	require.NoError(t, s.Submit("error", func() { panic("handler exploded") }))
	require.NoError(t, s.Submit("error", func() { close(ran) }))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}

	assert.Equal(t, uint64(1), s.Stats().Panicked)
}

func TestScheduler_StopDrains(t *testing.T) {
	s := newTestScheduler(2, 16)

	var count atomic.Int32
	for i := 0; i < 8; i++ {
		require.NoError(t, s.Submit("document", func() { count.Add(1) }))
	}

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, int32(8), count.Load())

	// After stop, submissions are rejected.
	err := s.Submit("document", func() {})
	assert.ErrorIs(t, err, errors.ErrShuttingDown)

	// Stop is idempotent.
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_StopTimeout(t *testing.T) {
	s := newTestScheduler(1, 8)

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, s.Submit("document", func() {
		close(started)
		<-block
	}))
	<-started

	// Queue work behind the stuck task so something is abandoned.
	require.NoError(t, s.Submit("document", func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := s.Stop(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))

	var shutdownErr *errors.ShutdownError
	require.ErrorAs(t, err, &shutdownErr)
	assert.Equal(t, 1, shutdownErr.Abandoned)
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	s := newTestScheduler(2, 16)
	assert.NoError(t, s.Stop(context.Background()))
}

func TestScheduler_Defaults(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, DefaultWorkerCount, s.workerCount)
	assert.Equal(t, DefaultQueueSize, s.queueSize)
}
