package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect opens a Redis client from a URL of the form redis://[:password@]host:port/db.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// Service is a TTL-based key store used as a distributed mutex.
type Service struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Service {
	return &Service{client: client, prefix: prefix}
}

func (s *Service) key(namespace, key string) string {
	return s.prefix + namespace + ":" + key
}

// SetKey stores value under namespace/key for ttl. With onlyIfAbsent it only
// writes when the key does not exist yet and reports whether it did.
func (s *Service) SetKey(ctx context.Context, namespace, key, value string, ttl time.Duration, onlyIfAbsent bool) (bool, error) {
	full := s.key(namespace, key)
	if !onlyIfAbsent {
		if err := s.client.Set(ctx, full, value, ttl).Err(); err != nil {
			return false, fmt.Errorf("set %s: %w", full, err)
		}
		return true, nil
	}

	ok, err := s.client.SetNX(ctx, full, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", full, err)
	}
	return ok, nil
}

// GetKey returns the stored value and whether it exists.
func (s *Service) GetKey(ctx context.Context, namespace, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(namespace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
