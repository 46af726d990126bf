package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&processed, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{ID: "job"}))
	}
	q.Stop()

	assert.Equal(t, int32(10), atomic.LoadInt32(&processed))
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	err := q.TryEnqueue(Job{ID: "early"})
	assert.True(t, errors.Is(err, ErrQueueClosed))

	q.Start(context.Background())
	q.Stop()

	err = q.Enqueue(context.Background(), Job{ID: "late"})
	assert.True(t, errors.Is(err, ErrQueueClosed))
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "a"}))
	require.Eventually(t, func() bool { return q.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.TryEnqueue(Job{ID: "b"}))

	err := q.TryEnqueue(Job{ID: "c"})
	assert.True(t, errors.Is(err, ErrQueueFull))

	close(release)
	q.Stop()
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var mu sync.Mutex
	attempts := map[string]int{}
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[job.ID]++
		if attempts[job.ID] < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "flaky"}))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return attempts["flaky"] == 3
	}, time.Second, 5*time.Millisecond)
	q.Stop()
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 1, RetryDelay: time.Millisecond})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job{ID: "broken"}))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	q.Stop()

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueueStopDrainsAfterParentCancelled(t *testing.T) {
	var written, failed int32
	release := make(chan struct{})
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-release
		if ctx.Err() != nil {
			atomic.AddInt32(&failed, 1)
			return ctx.Err()
		}
		atomic.AddInt32(&written, 1)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 0})

	parent, cancel := context.WithCancel(context.Background())
	q.Start(parent)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.TryEnqueue(Job{ID: id}))
	}
	cancel()
	close(release)
	q.Stop()

	assert.Equal(t, int32(3), atomic.LoadInt32(&written))
	assert.Zero(t, atomic.LoadInt32(&failed))
}
