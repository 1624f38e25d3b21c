package redis

import (
	"context"
	"fmt"
	"time"

	"auction-ledger-service/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	connectAttempts = 5
	connectBackoff  = 500 * time.Millisecond
	pingTimeout     = 5 * time.Second
)

// Connect builds a client for cfg and waits until Redis answers a PING,
// retrying with a doubling backoff.
func Connect(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})

	backoff := connectBackoff
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = Ping(ctx, client); err == nil {
			logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis connection established")
			return client, nil
		}

		logger.Warn().Err(err).Str("addr", cfg.Addr).Int("attempt", attempt).Msg("Redis not reachable yet")
		if attempt == connectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
}

// Ping tests the Redis connection
func Ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return client.Ping(ctx).Err()
}
