package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-scheduling-api/pkg/errors"
)

// CacheRepository stores JSON payloads under string keys.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService holds the computed stats documents. Every method is safe on
// a nil receiver so services run unchanged without Redis.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get decodes key into dest. A miss is (false, nil); a backend failure is
// logged and returned so callers can fall through to the database.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	}
	s.logger.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
	return false, err
}

// Set writes value with ttl, or the configured TTL when ttl <= 0.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate drops every key matching pattern. Writers call it after a
// successful mutation so stats never outlive the data they summarise.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	err := s.repo.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
	return err
}

// remember serves key from the cache or computes it with load and stores
// the result. Cache failures never fail the call.
func remember[T any](ctx context.Context, cache *CacheService, key string, load func(context.Context) (*T, error)) (*T, error) {
	var cached T
	if hit, _ := cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	value, err := load(ctx)
	if err != nil {
		return nil, err
	}
	_ = cache.Set(ctx, key, value, 0)
	return value, nil
}
