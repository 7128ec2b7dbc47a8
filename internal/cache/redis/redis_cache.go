package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	cache "simflow/internal/cache/iface"
	"simflow/internal/logger"

	"github.com/redis/go-redis/v9"
)

// compareAndDelete deletes KEYS[1] only if it holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// compareAndExpire sets a PEXPIRE of ARGV[2] on KEYS[1] only if it holds ARGV[1].
var compareAndExpire = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

type Config struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces every key, so several deployments can share one
	// Redis database.
	KeyPrefix   string
	DialTimeout time.Duration
}

type redisCache struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

// NewRedisCache connects to Redis and pings it once.
func NewRedisCache(cfg Config, log logger.Logger) (cache.Cache, error) {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("connected to Redis", logger.String("addr", cfg.Addr), logger.Int("db", cfg.DB))

	return &redisCache{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: log.With(logger.String("component", "redis_cache")),
	}, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.fail("set", key, r.client.Set(ctx, r.prefix+key, value, ttl).Err())
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", cache.ErrKeyNotFound, key)
	}
	return val, r.fail("get", key, err)
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	return r.fail("del", key, r.client.Del(ctx, r.prefix+key).Err())
}

func (r *redisCache) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.prefix+key, value, ttl).Result()
	return ok, r.fail("setnx", key, err)
}

func (r *redisCache) CompareAndDelete(ctx context.Context, key string, value string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, r.client, []string{r.prefix + key}, value).Int64()
	return n == 1, r.fail("compare-and-delete", key, err)
}

func (r *redisCache) CompareAndExpire(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	n, err := compareAndExpire.Run(ctx, r.client, []string{r.prefix + key}, value, ttl.Milliseconds()).Int64()
	return n == 1, r.fail("compare-and-expire", key, err)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}

func (r *redisCache) fail(op, key string, err error) error {
	if err == nil {
		return nil
	}
	r.logger.Error("redis command failed",
		logger.String("op", op),
		logger.String("key", key),
		logger.Error(err))
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}
