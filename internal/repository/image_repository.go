package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/infrastructure/redis"
	"github.com/ecoterra/siteapi/pkg/cache"
)

// MemoryImageRepository keeps the key→URL map in process memory
type MemoryImageRepository struct {
	mu     sync.RWMutex
	images map[string]string
}

func NewMemoryImageRepository() *MemoryImageRepository {
	return &MemoryImageRepository{images: make(map[string]string)}
}

func (r *MemoryImageRepository) Get(_ context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	url, ok := r.images[key]
	return url, ok, nil
}

func (r *MemoryImageRepository) Set(_ context.Context, key, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.images[key] = url
	return nil
}

func (r *MemoryImageRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.images, key)
	return nil
}

func (r *MemoryImageRepository) List(_ context.Context) (map[string]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.images))
	for k, v := range r.images {
		out[k] = v
	}
	return out, nil
}

const imagesHashKey = "images"

// RedisImageRepository keeps the key→URL map in a single Redis hash
type RedisImageRepository struct {
	redis *redis.Client
}

func NewRedisImageRepository(client *redis.Client) *RedisImageRepository {
	return &RedisImageRepository{redis: client}
}

func (r *RedisImageRepository) Get(ctx context.Context, key string) (string, bool, error) {
	url, err := r.redis.HGet(ctx, imagesHashKey, key)
	if err != nil {
		if redis.IsNil(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get image %q: %w", key, err)
	}
	return url, true, nil
}

func (r *RedisImageRepository) Set(ctx context.Context, key, url string) error {
	if err := r.redis.HSet(ctx, imagesHashKey, key, url); err != nil {
		return fmt.Errorf("failed to set image %q: %w", key, err)
	}
	return nil
}

func (r *RedisImageRepository) Delete(ctx context.Context, key string) error {
	if err := r.redis.HDel(ctx, imagesHashKey, key); err != nil {
		return fmt.Errorf("failed to delete image %q: %w", key, err)
	}
	return nil
}

func (r *RedisImageRepository) List(ctx context.Context) (map[string]string, error) {
	images, err := r.redis.HGetAll(ctx, imagesHashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return images, nil
}

// CachedImageRepository serves URL lookups from a TTL cache in front of another repository.
// Writes through this instance invalidate the cached key.
type CachedImageRepository struct {
	next  domain.ImageRepository
	cache *cache.Cache[string]
	ttl   time.Duration
}

func NewCachedImageRepository(next domain.ImageRepository, ttl time.Duration) *CachedImageRepository {
	return &CachedImageRepository{next: next, cache: cache.New[string](), ttl: ttl}
}

func (r *CachedImageRepository) Get(ctx context.Context, key string) (string, bool, error) {
	if url, ok := r.cache.Get(key); ok {
		return url, true, nil
	}
	url, ok, err := r.next.Get(ctx, key)
	if err != nil || !ok {
		return url, ok, err
	}
	r.cache.Set(key, url, r.ttl)
	return url, true, nil
}

func (r *CachedImageRepository) Set(ctx context.Context, key, url string) error {
	defer r.cache.Delete(key)
	return r.next.Set(ctx, key, url)
}

func (r *CachedImageRepository) Delete(ctx context.Context, key string) error {
	defer r.cache.Delete(key)
	return r.next.Delete(ctx, key)
}

func (r *CachedImageRepository) List(ctx context.Context) (map[string]string, error) {
	return r.next.List(ctx)
}
