package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"scrapPickup/internal/logging"
	"scrapPickup/internal/metrics"
	"scrapPickup/models"
)

// Cache is the key/value store behind CachedDirectory.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisCache adapts a go-redis client to Cache.
type RedisCache struct {
	rdb redis.Cmdable
}

func NewRedisCache(rdb redis.Cmdable) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// CachedDirectory serves profiles from a cache and fills it from next on a miss.
// Cache failures are logged and bypassed; they never fail a lookup.
type CachedDirectory struct {
	next  Directory
	cache Cache
	ttl   time.Duration
	log   logrus.FieldLogger
}

func NewCachedDirectory(next Directory, cache Cache, ttl time.Duration, log logrus.FieldLogger) *CachedDirectory {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = logging.Discard()
	}
	return &CachedDirectory{next: next, cache: cache, ttl: ttl, log: log}
}

func cacheKey(uid string) string { return "identity:profile:" + uid }

func (d *CachedDirectory) Lookup(ctx context.Context, uid string) (*models.UserProfile, error) {
	key := cacheKey(uid)
	raw, ok, err := d.cache.Get(ctx, key)
	switch {
	case err != nil:
		logging.WithContext(ctx, d.log).WithError(err).Warn("identity cache read failed")
	case ok:
		var p models.UserProfile
		if err := json.Unmarshal([]byte(raw), &p); err == nil {
			metrics.RecordIdentityLookup("hit")
			return &p, nil
		}
	default:
		metrics.RecordIdentityLookup("miss")
	}

	p, err := d.next.Lookup(ctx, uid)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(p); err == nil {
		if err := d.cache.Set(ctx, key, string(b), d.ttl); err != nil {
			logging.WithContext(ctx, d.log).WithError(err).Warn("identity cache write failed")
		}
	}
	return p, nil
}
