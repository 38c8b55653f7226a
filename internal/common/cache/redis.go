package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
)

// Redis stores entries in a redis server; expiry is left to redis.
type Redis struct {
	client  *redis.Client
	manager *gocache.Cache[string]
	ttl     time.Duration
}

func NewRedis(address, password string, db int, ttl time.Duration) (*Redis, error) {
	if address == "" {
		address = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", address, err)
	}

	return newRedis(client, ttl), nil
}

func newRedis(client *redis.Client, ttl time.Duration) *Redis {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(ttl))

	return &Redis{
		client:  client,
		manager: gocache.New[string](redisStore),
		ttl:     ttl,
	}
}

func (r *Redis) Get(ctx context.Context, key string, dst interface{}) error {
	value, err := r.manager.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.NotFound{}) || errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return &Error{Op: "get", Key: key, Err: err}
	}
	if value == "" {
		return ErrCacheMiss
	}
	return decode(key, []byte(value), dst)
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	if ttl <= 0 {
		ttl = r.ttl
	}

	if err := r.manager.Set(ctx, key, string(data), store.WithExpiration(ttl)); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, key string) error {
	if err := r.manager.Delete(ctx, key); err != nil {
		return &Error{Op: "invalidate", Key: key, Err: err}
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.manager.Clear(ctx); err != nil {
		return &Error{Op: "clear", Err: err}
	}
	return nil
}

// Purge is a no-op, redis expires keys itself.
func (r *Redis) Purge(context.Context) (int, error) { return 0, nil }

func (r *Redis) Close() error { return r.client.Close() }
