package redis_client

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Host     string
	Port     int
	Password string
	DB       int
	// ConnectTimeout bounds the boot-time ping retries.
	ConnectTimeout time.Duration
}

// NewRedisClient returns a client once the server answers PING. Redis often
// starts after us under compose, so the ping is retried with backoff.
func NewRedisClient(opts Options) (*redis.Client, error) {
	maxPool := runtime.NumCPU() * 8
	if maxPool > 512 {
		maxPool = 512
	}

	rc := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", opts.Host, opts.Port),
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: maxPool,
	})

	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	b := backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(connectTimeout))
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return rc.Ping(ctx).Err()
	}
	notify := func(err error, next time.Duration) {
		zap.L().Warn("redis_connect_retry", zap.Duration("next", next), zap.Error(err))
	}
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		_ = rc.Close()
		err = errors.New("Redis connection failed: " + err.Error())
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, err
	}
	zap.L().Info("redis connected", zap.String("addr", rc.Options().Addr), zap.Int("pool_size", maxPool))
	return rc, nil
}
