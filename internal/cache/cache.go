package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SpreadSync/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const keyPrefix = "spreadsync:"

// Cache string cache for rendered reports and generated SQL. Misses and
// backend errors look the same to callers; errors are only logged.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

// New returns a Redis-backed cache, or a no-op one when redis.addr is empty or unreachable.
func New(cfg config.RedisConfig, logger *logrus.Logger) (Cache, func() error) {
	if cfg.Addr == "" {
		return Noop{}, func() error { return nil }
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Addr).Warn("redis unreachable, caching disabled")
		_ = client.Close()
		return Noop{}, func() error { return nil }
	}
	logger.WithField("addr", cfg.Addr).Info("connected to redis")
	return NewRedis(client, cfg.TTL, logger), client.Close
}

type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("cache get failed")
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string) {
	if err := r.client.Set(ctx, keyPrefix+key, value, r.ttl).Err(); err != nil {
		r.logger.WithError(err).WithField("key", key).Warn("cache set failed")
	}
}

type Noop struct{}

func (Noop) Get(context.Context, string) (string, bool) { return "", false }
func (Noop) Set(context.Context, string, string)        {}

// Key joins parts into a cache key.
func Key(parts ...interface{}) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}
