package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"livegrid/pkg/retry"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects, pings (up to connectAttempts times) and
// migrates. A nil client and an error mean the caller should fall back to
// another store.
func NewRedisClient(address, password string, db, poolSize, connectAttempts int, logger *zap.SugaredLogger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = connectAttempts
	retryCfg.Retryable = isTransient
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		err := client.Ping(ctx).Err()
		if err != nil && logger != nil {
			logger.Debugw("redis ping failed", "address", address, "error", err)
		}
		return err
	})
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if err := Migrate(ctx, client, logger); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if logger != nil {
		logger.Infow("connected to Redis",
			"address", address,
			"db", db,
			"pool_size", poolSize,
		)
	}

	return client, nil
}

// isTransient keeps retrying network failures but not auth or protocol
// errors reported by the server itself.
func isTransient(err error) bool {
	var redisErr redis.Error
	return !errors.As(err, &redisErr)
}

func CloseRedisClient(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
