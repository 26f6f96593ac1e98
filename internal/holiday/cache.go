package holiday

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"
)

// YearCache stores the holiday map (date -> name) of one country and year.
type YearCache interface {
	Get(ctx context.Context, country string, year int) (map[string]string, bool)
	Set(ctx context.Context, country string, year int, holidays map[string]string) error
}

func cacheKey(country string, year int) string {
	return fmt.Sprintf("%s:%d", strings.ToUpper(country), year)
}

// LocalYearCache keeps holiday years in process memory.
type LocalYearCache struct {
	cache *gocache.Cache
}

func NewLocalYearCache(ttl, cleanupInterval time.Duration) *LocalYearCache {
	return &LocalYearCache{cache: gocache.New(ttl, cleanupInterval)}
}

func (l *LocalYearCache) Get(ctx context.Context, country string, year int) (map[string]string, bool) {
	v, ok := l.cache.Get(cacheKey(country, year))
	if !ok {
		return nil, false
	}
	holidays, ok := v.(map[string]string)
	return holidays, ok
}

func (l *LocalYearCache) Set(ctx context.Context, country string, year int, holidays map[string]string) error {
	l.cache.SetDefault(cacheKey(country, year), holidays)
	return nil
}

// RedisYearCache shares holiday years between instances.
type RedisYearCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisYearCache(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisYearCache {
	return &RedisYearCache{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (r *RedisYearCache) Get(ctx context.Context, country string, year int) (map[string]string, bool) {
	val, err := r.client.Get(ctx, r.keyPrefix+cacheKey(country, year)).Bytes()
	if err != nil {
		return nil, false
	}
	var holidays map[string]string
	if err := json.Unmarshal(val, &holidays); err != nil {
		return nil, false
	}
	return holidays, true
}

func (r *RedisYearCache) Set(ctx context.Context, country string, year int, holidays map[string]string) error {
	data, err := json.Marshal(holidays)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.keyPrefix+cacheKey(country, year), data, r.ttl).Err()
}

// TieredYearCache checks memory first and falls back to Redis,
// promoting Redis hits into memory.
type TieredYearCache struct {
	l1 *LocalYearCache
	l2 *RedisYearCache
}

func NewTieredYearCache(l1 *LocalYearCache, l2 *RedisYearCache) *TieredYearCache {
	return &TieredYearCache{l1: l1, l2: l2}
}

func (t *TieredYearCache) Get(ctx context.Context, country string, year int) (map[string]string, bool) {
	if v, ok := t.l1.Get(ctx, country, year); ok {
		return v, true
	}
	v, ok := t.l2.Get(ctx, country, year)
	if ok {
		t.l1.Set(ctx, country, year, v)
	}
	return v, ok
}

func (t *TieredYearCache) Set(ctx context.Context, country string, year int, holidays map[string]string) error {
	t.l1.Set(ctx, country, year, holidays)
	return t.l2.Set(ctx, country, year, holidays)
}
