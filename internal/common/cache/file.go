package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"github.com/ytransit-data/internal/common/logger"
)

type fileEntry struct {
	Expiry float64         `json:"expiry"`
	Data   json.RawMessage `json:"data"`
}

// File keeps a memory layer in front of one JSON file per key. Disk failures
// are logged and the memory layer keeps serving.
type File struct {
	mem    *Memory
	dir    string
	logger logger.Logger
}

func NewFile(dir string, ttl time.Duration, maxEntries int, log logger.Logger) (*File, error) {
	return newFile(dir, ttl, maxEntries, log, gcache.NewRealClock())
}

func newFile(dir string, ttl time.Duration, maxEntries int, log logger.Logger, clock gcache.Clock) (*File, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			base = os.TempDir()
		}
		dir = filepath.Join(base, "transitsearch")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &File{
		mem:    newMemory(ttl, maxEntries, clock),
		dir:    dir,
		logger: log,
	}, nil
}

func (f *File) Dir() string { return f.dir }

func (f *File) Get(ctx context.Context, key string, dst interface{}) error {
	if data, ok := f.mem.lookup(key); ok {
		return decode(key, data, dst)
	}

	path := f.path(key)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("Failed to read cache file", "path", path, "error", err)
		}
		return ErrCacheMiss
	}

	var e fileEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		f.logger.Debug("Removing corrupt cache file", "path", path, "error", err)
		os.Remove(path)
		return ErrCacheMiss
	}

	expiry := unixToTime(e.Expiry)
	if !expiry.After(f.mem.now()) {
		os.Remove(path)
		return ErrCacheMiss
	}

	if err := f.mem.store(key, e.Data, expiry); err != nil {
		f.logger.Debug("Failed to warm memory cache", "key", key, "error", err)
	}
	return decode(key, e.Data, dst)
}

func (f *File) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}

	expiry := f.mem.expiry(ttl)
	if err := f.mem.store(key, data, expiry); err != nil {
		return &Error{Op: "set", Key: key, Err: err}
	}

	raw, err := json.Marshal(fileEntry{Expiry: timeToUnix(expiry), Data: data})
	if err != nil {
		return &Error{Op: "encode", Key: key, Err: err}
	}
	if err := f.write(f.path(key), raw); err != nil {
		f.logger.Warn("Failed to write cache file", "key", key, "error", err)
	}
	return nil
}

func (f *File) Invalidate(ctx context.Context, key string) error {
	f.mem.Invalidate(ctx, key)
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "invalidate", Key: key, Err: err}
	}
	return nil
}

func (f *File) Clear(ctx context.Context) error {
	f.mem.Clear(ctx)

	files, err := f.files()
	if err != nil {
		return &Error{Op: "clear", Err: err}
	}
	for _, path := range files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.logger.Warn("Failed to remove cache file", "path", path, "error", err)
		}
	}
	return nil
}

// Purge removes expired files and memory entries. Unreadable files count as
// expired.
func (f *File) Purge(ctx context.Context) (int, error) {
	removed, _ := f.mem.Purge(ctx)

	files, err := f.files()
	if err != nil {
		return removed, &Error{Op: "purge", Err: err}
	}

	now := f.mem.now()
	for _, path := range files {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var e fileEntry
		if err := json.Unmarshal(raw, &e); err == nil && unixToTime(e.Expiry).After(now) {
			continue
		}

		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (f *File) path(key string) string {
	sum := md5.Sum([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

func (f *File) files() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(f.dir, e.Name()))
	}
	return files, nil
}

func (f *File) write(path string, raw []byte) error {
	tempFile, err := os.CreateTemp(f.dir, "cache_*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	_, err = tempFile.Write(raw)
	tempFile.Close()
	if err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("moving file to destination: %w", err)
	}
	return nil
}

func decode(key string, data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return &Error{Op: "decode", Key: key, Err: err}
	}
	return nil
}

func timeToUnix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func unixToTime(secs float64) time.Time {
	return time.Unix(0, int64(secs*float64(time.Second)))
}
