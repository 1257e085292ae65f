package cache

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/userhub/internal/redisclient"
	"github.com/redis/go-redis/v9"
)

// Redis is a Store shared by every API instance pointing at the same server.
type Redis struct {
	client *redisclient.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(client *redisclient.Client, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Raw().Get(ctx, r.prefix+key).Bytes()

	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.client.Raw().Set(ctx, r.prefix+key, val, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Raw().Del(ctx, r.prefix+key).Err()
}
