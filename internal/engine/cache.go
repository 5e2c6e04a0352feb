package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// VectorCache stores embedding vectors by key. Get returns ErrCacheMiss when
// the key is absent.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

var ErrCacheMiss = errors.New("cache miss")

// RedisCache is a VectorCache backed by Redis.
type RedisCache struct {
	rdb *goredis.Client
}

// NewRedisCache connects to addr and verifies the connection with PING.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	return b, err
}

func (c *RedisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

// CachedEngine wraps an Engine with a read-through vector cache. Cache
// failures never fail an embedding call; they only cost a recomputation.
type CachedEngine struct {
	inner Engine
	cache VectorCache
	ttl   time.Duration
}

// NewCachedEngine wraps inner. A zero ttl stores entries without expiry.
func NewCachedEngine(inner Engine, cache VectorCache, ttl time.Duration) *CachedEngine {
	return &CachedEngine{inner: inner, cache: cache, ttl: ttl}
}

func (e *CachedEngine) Name() string { return e.inner.Name() }

func (e *CachedEngine) Embed(ctx context.Context, model string, text string) ([]float32, error) {
	key := cacheKey(e.inner.Name(), model, text)

	if b, err := e.cache.Get(ctx, key); err == nil {
		if vec, derr := DecodeVector(b); derr == nil && len(vec) > 0 {
			return vec, nil
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		slog.Warn("embedding cache: get failed", "error", err)
	}

	vec, err := e.inner.Embed(ctx, model, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, EncodeVector(vec), e.ttl); err != nil {
		slog.Warn("embedding cache: set failed", "error", err)
	}
	return vec, nil
}

// IsRunning forwards to the wrapped engine when it can probe.
func (e *CachedEngine) IsRunning(ctx context.Context) bool {
	if p, ok := e.inner.(Prober); ok {
		return p.IsRunning(ctx)
	}
	return true
}

func cacheKey(provider, model, text string) string {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "learnpath:emb:" + hex.EncodeToString(h.Sum(nil))
}
