package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
)

// maxUpdateAttempts bounds optimistic retries when another client changes the
// key between WATCH and EXEC.
const maxUpdateAttempts = 10

// Redis stores values in Redis through the Fiber storage driver. The same
// driver backs HTTP sessions, see Storage.
type Redis struct {
	storage *redis.Storage
}

// NewRedis connects to the Redis server at url.
func NewRedis(url string) (r *Redis, err error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	// The driver panics when the initial ping fails.
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("connect to redis: %v", p)
		}
	}()
	return &Redis{storage: redis.New(redis.Config{URL: url})}, nil
}

// Storage returns the underlying driver for use as a Fiber session store.
func (r *Redis) Storage() *redis.Storage {
	return r.storage
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.storage.GetWithContext(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

// Set stores value without expiry.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.storage.SetWithContext(ctx, key, value, 0); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.storage.DeleteWithContext(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Update uses WATCH/MULTI/EXEC on key and retries when another client wins.
func (r *Redis) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *goredis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			old, err = nil, nil
		}
		if err != nil {
			return err
		}

		value, err := fn(old)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			if value == nil {
				p.Del(ctx, key)
			} else {
				p.Set(ctx, key, value, 0)
			}
			return nil
		})
		return err
	}

	client := r.storage.Conn()
	for range maxUpdateAttempts {
		err := client.Watch(ctx, txf, key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", key, err)
		}
		return nil
	}
	return fmt.Errorf("update %s: too much contention", key)
}

func (r *Redis) Close() error {
	return r.storage.Close()
}
