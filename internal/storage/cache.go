// Package storage holds the persistence adapters of the service: a result cache
// and an audit log of eligibility calculations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/redis/go-redis/v9"
)

// Cache stores string values by key with an optional time to live.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NopCache never stores anything.
type NopCache struct{}

// Get always misses.
func (NopCache) Get(context.Context, string) (string, bool, error) { return "", false, nil }

// Set discards the value.
func (NopCache) Set(context.Context, string, string, time.Duration) error { return nil }

const memorySweepInterval = time.Minute

type memoryEntry struct {
	value   string
	stored  time.Time
	expires time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// MemoryCache is an in-process Cache safe for concurrent use. Expired entries
// are swept periodically, and once maxEntries is reached the oldest entry is
// evicted to make room. Close stops the sweeper.
type MemoryCache struct {
	mu         sync.RWMutex
	data       map[string]memoryEntry
	maxEntries int
	now        func() time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewMemoryCache creates an empty MemoryCache holding at most maxEntries
// values and starts its background sweeper.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = constants.DefaultCacheMaxEntries
	}
	m := &MemoryCache{
		data:       make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
		stopSweep:  make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

func (m *MemoryCache) sweepLoop() {
	ticker := time.NewTicker(memorySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stopSweep:
			return
		}
	}
}

// Sweep removes every expired entry and returns how many were removed.
func (m *MemoryCache) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.now())
}

func (m *MemoryCache) sweepLocked(now time.Time) int {
	removed := 0
	for key, entry := range m.data {
		if entry.expired(now) {
			delete(m.data, key)
			removed++
		}
	}
	return removed
}

// evictOldestLocked drops the entry stored longest ago.
func (m *MemoryCache) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, entry := range m.data {
		if !found || entry.stored.Before(oldest) {
			oldestKey, oldest, found = key, entry.stored, true
		}
	}
	if found {
		delete(m.data, oldestKey)
	}
}

// Get returns the value for key if present and not expired.
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if entry.expired(m.now()) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value under key. A ttl <= 0 keeps it until it is evicted.
func (m *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	entry := memoryEntry{value: value, stored: now}
	if ttl > 0 {
		entry.expires = now.Add(ttl)
	}

	if _, exists := m.data[key]; !exists && len(m.data) >= m.maxEntries {
		if m.sweepLocked(now) == 0 {
			m.evictOldestLocked()
		}
	}
	m.data[key] = entry
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Close stops the background sweeper. It is safe to call more than once.
func (m *MemoryCache) Close() error {
	m.stopOnce.Do(func() { close(m.stopSweep) })
	return nil
}

// RedisCache is a Cache backed by Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// RedisOptions configure NewRedisCache.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Address, err)
	}
	return NewRedisCacheFromClient(client, opts.Prefix), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// Get returns the value for key; a missing key is a miss, not an error.
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set stores value under key. A ttl of 0 keeps it until evicted.
func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
