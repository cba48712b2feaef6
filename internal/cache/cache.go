// Package cache provides the short-lived read cache used for dashboard
// statistics.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// LRU is an in-process cache bounded by entry count and TTL.
type LRU struct {
	lru *expirable.LRU[string, []byte]
}

func NewLRU(size int, ttl time.Duration) *LRU {
	if size <= 0 {
		size = 128
	}
	return &LRU{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (c *LRU) Set(_ context.Context, key string, value []byte) error {
	c.lru.Add(key, value)
	return nil
}

// Redis shares cached values across server instances.
type Redis struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "scheduleit:cache"
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.rdb.Get(ctx, c.prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Redis) Set(ctx context.Context, key string, value []byte) error {
	return c.rdb.Set(ctx, c.prefix+":"+key, value, c.ttl).Err()
}

var (
	_ Cache = (*LRU)(nil)
	_ Cache = (*Redis)(nil)
)
