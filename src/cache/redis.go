package cache

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/mappichat/regions-atlas/src/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultSize = 256
	DefaultTTL  = 10 * time.Minute
)

// Redis shares the render cache between server instances. Redis errors
// count as misses.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedis(addr, pass string, ttl time.Duration) *Redis {
	return &Redis{Client: redis.NewClient(&redis.Options{Addr: addr, Password: pass}), TTL: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("redis get %s: %s", key, err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	return b, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) {
	if err := r.Client.Set(ctx, key, value, r.TTL).Err(); err != nil {
		log.Printf("redis set %s: %s", key, err)
	}
}

// FromEnv picks redis when REDIS_ADDR is set, otherwise an LRU of
// CACHE_SIZE entries.
func FromEnv() Cache {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		log.Printf("render cache: redis at %s", addr)
		return NewRedis(addr, os.Getenv("REDIS_PASS"), DefaultTTL)
	}
	size := DefaultSize
	if v := os.Getenv("CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = n
		}
	}
	log.Printf("render cache: in-memory lru of %d entries", size)
	return NewLRU(size, DefaultTTL)
}
