package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ytransit-data/internal/common/logger"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// Error is a backend failure. Callers treat it like a miss and carry on.
type Error struct {
	Op  string
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cache stores JSON-serialisable values with a time to live.
type Cache interface {
	// Get decodes the value stored under key into dst.
	Get(ctx context.Context, key string, dst interface{}) error
	// Set stores value under key. A non-positive ttl uses the cache default.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	// Purge drops expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)
}

const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

type Config struct {
	Backend       string
	TTL           time.Duration
	Dir           string
	MaxEntries    int
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

func DefaultConfig() Config {
	return Config{
		Backend:    BackendFile,
		TTL:        time.Hour,
		MaxEntries: 100,
	}
}

// New builds the cache backend selected by cfg.Backend.
func New(cfg Config, log logger.Logger) (Cache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Hour
	}

	switch strings.ToLower(cfg.Backend) {
	case BackendNone, "false", "off":
		log.Info("Caching disabled")
		return Nop{}, nil
	case BackendMemory:
		log.Info("Caching enabled", "backend", BackendMemory, "ttl", cfg.TTL.String())
		return NewMemory(cfg.TTL, cfg.MaxEntries), nil
	case BackendFile, "":
		c, err := NewFile(cfg.Dir, cfg.TTL, cfg.MaxEntries, log)
		if err != nil {
			return nil, err
		}
		log.Info("Caching enabled", "backend", BackendFile, "dir", c.Dir(), "ttl", cfg.TTL.String())
		return c, nil
	case BackendRedis:
		c, err := NewRedis(cfg.RedisAddress, cfg.RedisPassword, cfg.RedisDB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		log.Info("Caching enabled", "backend", BackendRedis, "address", cfg.RedisAddress, "ttl", cfg.TTL.String())
		return c, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Key derives a cache key from a method name and its parameters. Parameter
// order does not matter.
func Key(method string, params map[string]string) string {
	// json.Marshal sorts map keys
	encoded, _ := json.Marshal(params)
	sum := md5.Sum(encoded)
	return method + ":" + hex.EncodeToString(sum[:])
}

// Nop is a disabled cache: every Get misses and every Set is dropped.
type Nop struct{}

func (Nop) Get(context.Context, string, interface{}) error              { return ErrCacheMiss }
func (Nop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (Nop) Invalidate(context.Context, string) error                    { return nil }
func (Nop) Clear(context.Context) error                                 { return nil }
func (Nop) Purge(context.Context) (int, error)                          { return 0, nil }
