package gallery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ListingCache holds the last loaded Listing.
type ListingCache interface {
	Get(ctx context.Context) (Listing, bool, error)
	Set(ctx context.Context, l Listing) error
}

type memoryCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	val *Listing
	exp time.Time
	now func() time.Time
}

// NewMemoryCache keeps the listing in process memory for ttl (0 = until replaced).
func NewMemoryCache(ttl time.Duration) ListingCache {
	return &memoryCache{ttl: ttl, now: time.Now}
}

func (m *memoryCache) Get(context.Context) (Listing, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.val == nil {
		return Listing{}, false, nil
	}
	if m.ttl > 0 && m.now().After(m.exp) {
		return Listing{}, false, nil
	}
	return m.val.clone(), true, nil
}

func (m *memoryCache) Set(_ context.Context, l Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := l.clone()
	m.val = &c
	m.exp = m.now().Add(m.ttl)
	return nil
}

const redisListingKey = "ntes:gallery:listing"

type redisCache struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

// NewRedisCache shares the listing across processes through redis.
func NewRedisCache(rdb redis.UniversalClient, ttl time.Duration) ListingCache {
	return &redisCache{rdb: rdb, ttl: ttl}
}

func (r *redisCache) Get(ctx context.Context) (Listing, bool, error) {
	b, err := r.rdb.Get(ctx, redisListingKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Listing{}, false, nil
	}
	if err != nil {
		return Listing{}, false, fmt.Errorf("redis get listing: %w", err)
	}
	var l Listing
	if err := json.Unmarshal(b, &l); err != nil {
		return Listing{}, false, fmt.Errorf("decode listing: %w", err)
	}
	return l, true, nil
}

func (r *redisCache) Set(ctx context.Context, l Listing) error {
	b, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}
	if err := r.rdb.Set(ctx, redisListingKey, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set listing: %w", err)
	}
	return nil
}
