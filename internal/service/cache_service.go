package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ttapp-api/pkg/errors"
)

const (
	substitutionCachePrefix    = "substitutions:"
	substitutionVersionPrefix  = "substitution-versions:"
	substitutionWeekVersionKey = substitutionVersionPrefix + "week"
	// versionTTL must exceed every suggestion TTL.
	versionTTL                 = 24 * time.Hour
)

func substitutionDateVersionKey(date string) string {
	return substitutionVersionPrefix + date
}

// substitutionCacheKey returns the key suggestions for date are stored under. The key embeds
// the week and date counters read before the snapshot, so a result computed before an
// invalidation is written under a key no later reader asks for.
// It reports false when caching is off or the counters cannot be read.
func substitutionCacheKey(ctx context.Context, cache *CacheService, date string) (string, bool) {
	if !cache.Enabled() {
		return "", false
	}
	week, err := cache.Version(ctx, substitutionWeekVersionKey)
	if err != nil {
		return "", false
	}
	day, err := cache.Version(ctx, substitutionDateVersionKey(date))
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s%s:w%d:d%d", substitutionCachePrefix, date, week, day), true
}

// invalidateSubstitutions retires cached suggestions for date, or for every date when date is empty.
func invalidateSubstitutions(ctx context.Context, cache *CacheService, date string) {
	if !cache.Enabled() {
		return
	}
	versionKey, pattern := substitutionWeekVersionKey, substitutionCachePrefix+"*"
	if date != "" {
		versionKey, pattern = substitutionDateVersionKey(date), substitutionCachePrefix+date+":*"
	}
	_ = cache.Bump(ctx, versionKey)
	_ = cache.Invalidate(ctx, pattern)
}

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
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
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Version reads a counter maintained by Bump. A missing counter reads as zero.
func (s *CacheService) Version(ctx context.Context, key string) (int64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	var version int64
	if err := s.repo.Get(ctx, key, &version); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return 0, nil
		}
		s.logger.Warn("cache version read failed", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return version, nil
}

// Bump increments a counter read by Version.
func (s *CacheService) Bump(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.repo.Incr(ctx, key, versionTTL); err != nil {
		s.logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
