package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySerializesSameKey(t *testing.T) {
	m := NewMemory(0)
	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := m.Acquire(context.Background(), "teacher:1:day:1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, m.size())
}

func TestMemoryDistinctKeysDoNotBlock(t *testing.T) {
	m := NewMemory(50 * time.Millisecond)
	releaseA, err := m.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := m.Acquire(context.Background(), "b")
	require.NoError(t, err)
	releaseB()
}

func TestMemoryWaitTimesOut(t *testing.T) {
	m := NewMemory(20 * time.Millisecond)
	release, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "k")
	assert.ErrorIs(t, err, ErrTimeout)

	release()
	release()
	assert.Equal(t, 0, m.size())
}

func TestMemoryHonoursCancelledContext(t *testing.T) {
	m := NewMemory(0)
	release, err := m.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Acquire(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
