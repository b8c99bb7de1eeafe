package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chachabrian/shupool-backend/internal/models"
	"github.com/redis/go-redis/v9"
)

// RideUpdatesChannel carries every published event for live consumers.
const RideUpdatesChannel = "ride:updates"

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %v", err)
	}
	return client, nil
}

// RedisPublisher publishes events on the ride:updates pub/sub channel.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, RideUpdatesChannel, data).Err()
}

// pendingMarker is stored under a claimed idempotency key until the request
// finishes and the key is pointed at its result.
const pendingMarker = "__pending__"

// RedisIdempotencyStore keeps idempotency keys in Redis so that every
// replica sees the same claims.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisIdempotencyStore(client redis.UniversalClient, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, ttl: ttl}
}

func (s *RedisIdempotencyStore) Begin(ctx context.Context, key string) (string, bool, error) {
	// Two rounds cover a key that expires between SETNX and GET.
	for i := 0; i < 2; i++ {
		ok, err := s.client.SetNX(ctx, key, pendingMarker, s.ttl).Result()
		if err != nil {
			return "", false, fmt.Errorf("claim idempotency key: %w", err)
		}
		if ok {
			return "", false, nil
		}
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("read idempotency key: %w", err)
		}
		if val == pendingMarker {
			return "", false, models.ErrRequestInProgress
		}
		return val, true, nil
	}
	return "", false, models.ErrRequestInProgress
}

func (s *RedisIdempotencyStore) Complete(ctx context.Context, key, result string) error {
	return s.client.Set(ctx, key, result, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Abort(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}
