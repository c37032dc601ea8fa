package achievement

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"ecocommunity-gamification/pkg/config"
	"ecocommunity-gamification/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"

	DefaultCacheTTL = 300 * time.Second
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_achievement_cache_hits_total",
		Help: "Earned-achievement lookups served from cache.",
	}, []string{"driver"})
	cacheMiss = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamification_achievement_cache_miss_total",
		Help: "Earned-achievement lookups that went to the database.",
	}, []string{"driver"})
)

// Cache holds each user's earned list. Award invalidates the entry after
// commit; the TTL bounds staleness the invalidation cannot reach, such as
// another instance's memory cache.
type Cache interface {
	Get(ctx context.Context, userID int64) ([]Earned, bool)
	Set(ctx context.Context, userID int64, earned []Earned)
	Invalidate(ctx context.Context, userID int64) error
}

type CacheParams struct {
	fx.In
	Config *config.Config  `optional:"true"`
	Redis  *goredis.Client `optional:"true"`
}

// NewCache picks the driver from GAMIFICATION.CACHE_DRIVER. redis falls
// back to memory when no client is wired.
func NewCache(p CacheParams) Cache {
	ttl := DefaultCacheTTL
	driver := CacheDriverMemory
	if p.Config != nil {
		if p.Config.Gamification.CacheTTL > 0 {
			ttl = p.Config.Gamification.CacheTTL
		}
		if p.Config.Gamification.CacheDriver != "" {
			driver = p.Config.Gamification.CacheDriver
		}
	}

	if driver == CacheDriverRedis {
		if p.Redis != nil {
			return NewRedisCache(p.Redis, ttl)
		}
		zap.L().Warn("redis cache driver requested without a redis client, using memory")
	}
	return NewMemoryCache(ttl)
}

type cacheEntry struct {
	earned     []Earned
	insertedAt time.Time
}

// MemoryCache is process local. Instances do not see each other's
// invalidations.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[int64]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		items: make(map[int64]cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) ([]Earned, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[userID]
	if !ok || (c.ttl > 0 && c.now().Sub(e.insertedAt) >= c.ttl) {
		cacheMiss.WithLabelValues(CacheDriverMemory).Inc()
		return nil, false
	}
	cacheHits.WithLabelValues(CacheDriverMemory).Inc()
	return cloneEarned(e.earned), true
}

func (c *MemoryCache) Set(_ context.Context, userID int64, earned []Earned) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[userID] = cacheEntry{earned: cloneEarned(earned), insertedAt: c.now()}
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, userID)
	return nil
}

func cloneEarned(in []Earned) []Earned {
	out := make([]Earned, len(in))
	copy(out, in)
	return out
}

// RedisStore is the subset of *redis.Client the redis driver uses.
type RedisStore interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RedisCache shares entries across instances. Errors degrade to misses.
type RedisCache struct {
	client RedisStore
	ttl    time.Duration
}

func NewRedisCache(client RedisStore, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, userID int64) ([]Earned, bool) {
	raw, err := c.client.Get(ctx, rediskey.BuildAchievementsKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			zap.L().Warn("achievement cache read failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		cacheMiss.WithLabelValues(CacheDriverRedis).Inc()
		return nil, false
	}

	var earned []Earned
	if err := json.Unmarshal(raw, &earned); err != nil {
		zap.L().Warn("achievement cache entry is corrupt", zap.Int64("user_id", userID), zap.Error(err))
		cacheMiss.WithLabelValues(CacheDriverRedis).Inc()
		return nil, false
	}

	cacheHits.WithLabelValues(CacheDriverRedis).Inc()
	return earned, true
}

func (c *RedisCache) Set(ctx context.Context, userID int64, earned []Earned) {
	raw, err := json.Marshal(earned)
	if err != nil {
		zap.L().Warn("failed to encode achievement cache entry", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, rediskey.BuildAchievementsKey(userID), raw, c.ttl).Err(); err != nil {
		zap.L().Warn("achievement cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) error {
	return c.client.Del(ctx, rediskey.BuildAchievementsKey(userID)).Err()
}
