// Package cache stores the resolved currency settings between requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Currency is the cached form of the display currency.
type Currency struct {
	Symbol   string  `json:"symbol"`
	ImageURL *string `json:"imageUrl"`
}

// Cache returns ok=false on a miss. Get also reports the current generation;
// Invalidate moves to a new generation, and Set only stores a value read under
// the generation it is given, so a lookup that raced a save cannot cache the
// old settings again.
type Cache interface {
	Get(ctx context.Context) (c Currency, gen uint64, ok bool, err error)
	Set(ctx context.Context, gen uint64, c Currency) (stored bool, err error)
	Invalidate(ctx context.Context) error
}

type memoryEntry struct {
	gen   uint64
	value *Currency
}

// Memory lives for the process lifetime.
type Memory struct {
	v atomic.Pointer[memoryEntry]
}

func NewMemory() *Memory {
	m := &Memory{}
	m.v.Store(&memoryEntry{})
	return m
}

func (m *Memory) Get(context.Context) (Currency, uint64, bool, error) {
	e := m.v.Load()
	if e.value == nil {
		return Currency{}, e.gen, false, nil
	}
	return *e.value, e.gen, true, nil
}

func (m *Memory) Set(_ context.Context, gen uint64, c Currency) (bool, error) {
	for {
		cur := m.v.Load()
		if cur.gen != gen {
			return false, nil
		}
		if m.v.CompareAndSwap(cur, &memoryEntry{gen: gen, value: &c}) {
			return true, nil
		}
	}
}

func (m *Memory) Invalidate(context.Context) error {
	for {
		cur := m.v.Load()
		if m.v.CompareAndSwap(cur, &memoryEntry{gen: cur.gen + 1}) {
			return nil
		}
	}
}

const (
	redisKey    = "nuomi:settings:currency"
	redisGenKey = "nuomi:settings:currency:gen"
)

type redisEntry struct {
	Gen      uint64   `json:"gen"`
	Currency Currency `json:"currency"`
}

// Redis shares the cached value, and its invalidation, between instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis caches without expiry when ttl is zero.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGen(ctx context.Context, c stringGetter) (uint64, error) {
	gen, err := c.Get(ctx, redisGenKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read currency cache generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context) (Currency, uint64, bool, error) {
	vals, err := r.client.MGet(ctx, redisGenKey, redisKey).Result()
	if err != nil {
		return Currency{}, 0, false, fmt.Errorf("failed to read currency cache: %w", err)
	}

	var gen uint64
	if raw, ok := vals[0].(string); ok {
		if gen, err = strconv.ParseUint(raw, 10, 64); err != nil {
			return Currency{}, 0, false, fmt.Errorf("failed to decode currency cache generation: %w", err)
		}
	}
	raw, ok := vals[1].(string)
	if !ok {
		return Currency{}, gen, false, nil
	}
	var e redisEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Currency{}, gen, false, fmt.Errorf("failed to decode currency cache: %w", err)
	}
	if e.Gen != gen {
		return Currency{}, gen, false, nil
	}
	return e.Currency, gen, true, nil
}

// Set writes under WATCH on the generation key, so an Invalidate from any
// instance between the read and the write discards the value.
func (r *Redis) Set(ctx context.Context, gen uint64, c Currency) (bool, error) {
	raw, err := json.Marshal(redisEntry{Gen: gen, Currency: c})
	if err != nil {
		return false, fmt.Errorf("failed to encode currency cache: %w", err)
	}

	stored := false
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGen(ctx, tx)
		if err != nil || cur != gen {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, raw, r.ttl)
			return nil
		})
		if err == nil {
			stored = true
		}
		return err
	}, redisGenKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to write currency cache: %w", err)
	}
	return stored, nil
}

func (r *Redis) Invalidate(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, redisGenKey)
		pipe.Del(ctx, redisKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate currency cache: %w", err)
	}
	return nil
}
