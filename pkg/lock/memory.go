package lock

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	sem  chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Entries are dropped once no caller references them.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	wait    time.Duration
}

// NewMemory creates a keyed mutex. A positive wait bounds how long Acquire blocks.
func NewMemory(wait time.Duration) *Memory {
	return &Memory{entries: make(map[string]*memoryEntry), wait: wait}
}

// Acquire blocks until key is free, the wait elapses or ctx is done.
func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &memoryEntry{sem: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	if m.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}

	select {
	case entry.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, entry)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.sem
			m.unref(key, entry)
		})
	}, nil
}

func (m *Memory) unref(key string, entry *memoryEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
}

func (m *Memory) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
