package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const DefaultCleanupInterval = 30 * time.Minute

// CacheManager holds derived values. Entries may disappear at any time; a miss means the value
// has not been computed yet.
type CacheManager[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V)
	Delete(ctx context.Context, keys ...string)
}

// InMemoryCacheManager is a process-wide CacheManager backed by go-cache.
type InMemoryCacheManager[V any] struct {
	useCase string
	ttl     time.Duration
	cache   *gocache.Cache
	logger  *zap.Logger
}

// NewInMemoryCacheManager returns a cache whose entries live for ttl; zero means until deleted.
func NewInMemoryCacheManager[V any](useCase string, ttl time.Duration, logger *zap.Logger) *InMemoryCacheManager[V] {
	expiration := ttl
	if expiration <= 0 {
		expiration = gocache.NoExpiration
	}
	return &InMemoryCacheManager[V]{
		useCase: useCase,
		ttl:     expiration,
		cache:   gocache.New(expiration, DefaultCleanupInterval),
		logger:  logger.With(zap.String("cache", useCase)),
	}
}

func (c *InMemoryCacheManager[V]) Get(ctx context.Context, key string) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(key)
	if !found {
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		c.logger.Error("wrong type assertion when getting value", zap.String("key", key))
		return zeroValue, false
	}

	c.logger.Debug("cache hit", zap.String("key", key))
	return v, true
}

func (c *InMemoryCacheManager[V]) Set(ctx context.Context, key string, value V) {
	c.cache.Set(key, value, c.ttl)
}

func (c *InMemoryCacheManager[V]) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		c.cache.Delete(key)
	}
}
