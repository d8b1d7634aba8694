package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

type ClientOptions struct {
	Address  string
	Password string
	DB       int
	PoolSize int
}

// Connect opens a client and waits for a PING, bounded by ctx and connectTimeout.
// The coordinator issues a few small commands per call, so the pool is kept lean.
func Connect(ctx context.Context, opts ClientOptions, log *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:            opts.Address,
		Password:        opts.Password,
		DB:              opts.DB,
		PoolSize:        opts.PoolSize,
		DialTimeout:     connectTimeout,
		ReadTimeout:     2 * time.Second,
		WriteTimeout:    2 * time.Second,
		ConnMaxIdleTime: 5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", opts.Address, err)
	}

	log.Infow("Connected to Redis", "address", opts.Address, "db", opts.DB)
	return client, nil
}
