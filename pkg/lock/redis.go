package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis is a Locker backed by redislock.
type Redis struct {
	client *redis.Client
	locker *redislock.Client
	logger *slog.Logger
}

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(ctx context.Context, config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", config.Addr, err)
	}

	logger := slog.Default().With("component", "lock.redis")
	logger.Info("connected to redis", "addr", config.Addr, "db", config.DB)

	return &Redis{
		client: client,
		locker: redislock.New(client),
		logger: logger,
	}, nil
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	l, err := r.locker.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrHeld
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lease %q: %w", key, err)
	}
	r.logger.Debug("lease obtained", "key", key, "ttl", ttl)
	return &redisLease{lock: l, key: key, logger: r.logger}, nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}

type redisLease struct {
	lock   *redislock.Lock
	key    string
	logger *slog.Logger
}

func (l *redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		l.logger.Warn("lease expired before release", "key", l.key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to release lease %q: %w", l.key, err)
	}
	return nil
}
