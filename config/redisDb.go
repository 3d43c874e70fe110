package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb    *redis.Client
	locker *redislock.Client
)

func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func GetRedisObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func SetRedisObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, objInByte, exp).Err()
}

// ConnectRedis connects and sets the global Redis client + lock client.
// Unlike a long-lived server, the batch pipeline gives up after maxAttempts
// and keeps running without Redis.
func ConnectRedis(ctx context.Context, redisAddr string, maxAttempts int) error {
	if redisAddr == "" {
		return errors.New("REDIS_ADDRESS not set")
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	logger := GetLogger()
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: "",
			DB:       0, // use default DB
			PoolSize: 10,
		})
		if err := client.Ping(ctx).Err(); err == nil {
			rdb = client
			locker = redislock.New(rdb)
			logger.WithField("addr", redisAddr).Infof("connected to redis (attempt=%d)", attempt)
			return nil
		} else {
			lastErr = err
			_ = client.Close()
		}
		if attempt == maxAttempts {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithField("addr", redisAddr).Warnf("failed to connect redis (attempt=%d): %v; retrying in %s", attempt, lastErr, sleep)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
	return fmt.Errorf("connect redis %s: %w", redisAddr, lastErr)
}

func CloseRedis() {
	if rdb != nil {
		_ = rdb.Close()
		rdb = nil
		locker = nil
	}
}
