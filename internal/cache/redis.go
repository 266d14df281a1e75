package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lehigh-university-libraries/describer/internal/models"
	"github.com/redis/go-redis/v9"
)

const DefaultPrefix = "describer:analysis:"

// Redis is a Store shared between processes
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server at redisURL, e.g. redis://localhost:6379/0
func NewRedis(ctx context.Context, redisURL, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Redis{
		client: client,
		prefix: prefix,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (models.ImageAnalysis, error) {
	var analysis models.ImageAnalysis

	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return analysis, ErrCacheMiss
	}
	if err != nil {
		return analysis, fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(val, &analysis); err != nil {
		return analysis, fmt.Errorf("decode cached analysis: %w", err)
	}
	return analysis, nil
}

// Set stores the analysis without expiry; entries live until Clear
func (r *Redis) Set(ctx context.Context, key string, analysis models.ImageAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	return nil
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
