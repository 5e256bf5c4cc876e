// Package redis opens go-redis clients, retrying the initial ping with
// exponential backoff so the service can start before Redis is ready.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/shortlink/pkg/logger"
)

// Options defines the Redis client and its connection retry behavior.
type Options struct {
	Addr           string
	Username       string
	Password       string
	DB             int
	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	PoolSize       int
	ConnectTimeout time.Duration // total time allowed for connection attempts
	RetryInterval  time.Duration // initial wait between attempts
	MaxWait        time.Duration // cap of the wait between attempts
	PingTimeout    time.Duration // timeout of a single ping
}

func (o *Options) validate() error {
	if o.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if o.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be > 0, got %v", o.ConnectTimeout)
	}
	if o.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be > 0, got %v", o.RetryInterval)
	}
	if o.MaxWait <= 0 {
		return fmt.Errorf("max wait must be > 0, got %v", o.MaxWait)
	}
	if o.PingTimeout <= 0 {
		return fmt.Errorf("ping timeout must be > 0, got %v", o.PingTimeout)
	}
	return nil
}

// New creates a client and pings it until it answers or ConnectTimeout passes.
func New(ctx context.Context, opts Options, log logger.Logger) (*redis.Client, error) {
	const op = "redis.New"

	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid options: %w", op, err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.RetryInterval
	b.MaxInterval = opts.MaxWait
	b.MaxElapsedTime = opts.ConnectTimeout

	attempts := 0
	start := time.Now()

	log.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.ConnectTimeout))

	ping := func() error {
		attempts++

		pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer cancel()

		return client.Ping(pingCtx).Err()
	}

	notify := func(err error, next time.Duration) {
		log.Warn("redis connection failed, retrying",
			logger.String("addr", opts.Addr),
			logger.Int("attempt", attempts),
			logger.Duration("next_retry_in", next),
			logger.Error(err))
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		client.Close()

		log.Error("redis unavailable",
			logger.String("addr", opts.Addr),
			logger.Int("attempts", attempts),
			logger.Error(err))

		return nil, fmt.Errorf("%s: redis unavailable at %s after %d attempts: %w", op, opts.Addr, attempts, err)
	}

	log.Info("connected to redis",
		logger.String("addr", opts.Addr),
		logger.Int("attempts", attempts),
		logger.Duration("elapsed", time.Since(start)))

	return client, nil
}
