package conflict

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Locker acquires an exclusive hold on a named key. The returned function releases it.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Guard runs check-and-write sequences while holding locks on every affected resource key.
type Guard struct {
	locker Locker
	logger *zap.Logger
}

// NewGuard builds a guard over the provided locker.
func NewGuard(locker Locker, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{locker: locker, logger: logger}
}

// Do acquires every key in sorted order, runs fn, then releases in reverse order.
// A nil guard or locker runs fn directly.
func (g *Guard) Do(ctx context.Context, keys []ResourceKey, fn func(ctx context.Context) error) error {
	if g == nil || g.locker == nil {
		return fn(ctx)
	}

	ordered := normalize(keys)
	releases := make([]func(), 0, len(ordered))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()

	for _, key := range ordered {
		release, err := g.locker.Acquire(ctx, string(key))
		if err != nil {
			g.logger.Warn("resource lock unavailable", zap.String("key", string(key)), zap.Error(err))
			return fmt.Errorf("acquire lock %s: %w", key, err)
		}
		releases = append(releases, release)
	}

	return fn(ctx)
}
