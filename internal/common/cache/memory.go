package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bluele/gcache"
)

// Memory is an in-process LRU cache with a per-entry expiry.
type Memory struct {
	items gcache.Cache
	ttl   time.Duration
	clock gcache.Clock
}

func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return newMemory(ttl, maxEntries, gcache.NewRealClock())
}

func newMemory(ttl time.Duration, maxEntries int, clock gcache.Clock) *Memory {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	return &Memory{
		items: gcache.New(maxEntries).
			LRU().
			Clock(clock).
			Build(),
		ttl:   ttl,
		clock: clock,
	}
}

func (m *Memory) Get(_ context.Context, key string, dst interface{}) error {
	data, ok := m.lookup(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(key, data, dst)
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	if err := m.store(key, data, m.expiry(ttl)); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, key string) error {
	m.items.Remove(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.items.Purge()
	return nil
}

// Purge drops expired entries and reports how many were removed.
func (m *Memory) Purge(_ context.Context) (int, error) {
	removed := 0
	for _, key := range m.items.Keys(false) {
		// expired entries are dropped by the lookup itself
		if _, err := m.items.GetIFPresent(key); errors.Is(err, gcache.KeyNotFoundError) {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of entries, expired ones included.
func (m *Memory) Len() int {
	return m.items.Len(false)
}

func (m *Memory) now() time.Time {
	return m.clock.Now()
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = m.ttl
	}
	return m.now().Add(ttl)
}

func (m *Memory) lookup(key string) ([]byte, bool) {
	v, err := m.items.Get(key)
	if err != nil {
		return nil, false
	}
	data, ok := v.([]byte)
	return data, ok
}

func (m *Memory) store(key string, data []byte, expiry time.Time) error {
	return m.items.SetWithExpire(key, data, expiry.Sub(m.now()))
}
