package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytransit-data/internal/common/logger"
)

type payload struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// fakeClock satisfies gcache.Clock.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestKey(t *testing.T) {
	a := Key("search_routes", map[string]string{"from": "渋谷", "to": "新宿"})
	b := Key("search_routes", map[string]string{"to": "新宿", "from": "渋谷"})
	c := Key("search_routes", map[string]string{"from": "新宿", "to": "渋谷"})
	d := Key("suggestions", map[string]string{"from": "渋谷", "to": "新宿"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.Regexp(t, `^search_routes:[0-9a-f]{32}$`, a)
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	m := newMemory(time.Minute, 2, clock)

	var got payload
	assert.ErrorIs(t, m.Get(ctx, "missing", &got), ErrCacheMiss)

	want := payload{Name: "渋谷", Lines: []string{"JR山手線"}}
	require.NoError(t, m.Set(ctx, "a", want, 0))
	require.NoError(t, m.Get(ctx, "a", &got))
	assert.Equal(t, want, got)

	t.Run("expiry", func(t *testing.T) {
		clock.advance(2 * time.Minute)
		assert.ErrorIs(t, m.Get(ctx, "a", &got), ErrCacheMiss)
		assert.Equal(t, 0, m.Len())
	})

	t.Run("evicts least recently used when full", func(t *testing.T) {
		require.NoError(t, m.Set(ctx, "long", want, time.Hour))
		require.NoError(t, m.Set(ctx, "stale", want, 0))
		require.NoError(t, m.Get(ctx, "long", &got))
		require.NoError(t, m.Set(ctx, "new", want, 0))

		assert.Equal(t, 2, m.Len())
		assert.ErrorIs(t, m.Get(ctx, "stale", &got), ErrCacheMiss)
		assert.NoError(t, m.Get(ctx, "long", &got))
		assert.NoError(t, m.Get(ctx, "new", &got))
	})

	t.Run("purge", func(t *testing.T) {
		clock.advance(5 * time.Minute)
		removed, err := m.Purge(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)
		assert.Equal(t, 1, m.Len())
	})

	t.Run("invalidate and clear", func(t *testing.T) {
		require.NoError(t, m.Invalidate(ctx, "long"))
		assert.ErrorIs(t, m.Get(ctx, "long", &got), ErrCacheMiss)

		require.NoError(t, m.Set(ctx, "x", want, 0))
		require.NoError(t, m.Clear(ctx))
		assert.Equal(t, 0, m.Len())
	})
}

func newTestFile(t *testing.T) (*File, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Now()}
	f, err := newFile(t.TempDir(), time.Minute, 10, logger.Nop(), clock)
	require.NoError(t, err)
	return f, clock
}

func TestFile(t *testing.T) {
	ctx := context.Background()
	want := payload{Name: "新宿", Lines: []string{"小田急線"}}

	t.Run("persists across instances", func(t *testing.T) {
		f, _ := newTestFile(t)
		require.NoError(t, f.Set(ctx, "k", want, 0))

		other, err := NewFile(f.Dir(), time.Minute, 10, logger.Nop())
		require.NoError(t, err)

		var got payload
		require.NoError(t, other.Get(ctx, "k", &got))
		assert.Equal(t, want, got)
	})

	t.Run("expired file removed on read", func(t *testing.T) {
		f, clock := newTestFile(t)
		require.NoError(t, f.Set(ctx, "k", want, 0))
		f.mem.Clear(ctx)

		clock.advance(time.Hour)
		var got payload
		assert.ErrorIs(t, f.Get(ctx, "k", &got), ErrCacheMiss)
		assert.NoFileExists(t, f.path("k"))
	})

	t.Run("corrupt file removed on read", func(t *testing.T) {
		f, _ := newTestFile(t)
		require.NoError(t, os.WriteFile(f.path("k"), []byte("{not json"), 0644))

		var got payload
		assert.ErrorIs(t, f.Get(ctx, "k", &got), ErrCacheMiss)
		assert.NoFileExists(t, f.path("k"))
	})

	t.Run("no temp files left behind", func(t *testing.T) {
		f, _ := newTestFile(t)
		require.NoError(t, f.Set(ctx, "a", want, 0))
		require.NoError(t, f.Set(ctx, "b", want, 0))

		tmp, err := filepath.Glob(filepath.Join(f.Dir(), "*.tmp"))
		require.NoError(t, err)
		assert.Empty(t, tmp)

		files, err := f.files()
		require.NoError(t, err)
		assert.Len(t, files, 2)
	})

	t.Run("purge", func(t *testing.T) {
		f, clock := newTestFile(t)
		require.NoError(t, f.Set(ctx, "short", want, time.Second))
		require.NoError(t, f.Set(ctx, "long", want, time.Hour))
		require.NoError(t, os.WriteFile(filepath.Join(f.Dir(), "junk.json"), []byte("x"), 0644))

		clock.advance(time.Minute)
		removed, err := f.Purge(ctx)
		require.NoError(t, err)
		// memory entry + file for "short", plus the junk file
		assert.Equal(t, 3, removed)

		files, err := f.files()
		require.NoError(t, err)
		assert.Equal(t, []string{f.path("long")}, files)
	})

	t.Run("invalidate and clear", func(t *testing.T) {
		f, _ := newTestFile(t)
		require.NoError(t, f.Set(ctx, "a", want, 0))
		require.NoError(t, f.Set(ctx, "b", want, 0))

		require.NoError(t, f.Invalidate(ctx, "a"))
		assert.NoFileExists(t, f.path("a"))
		require.NoError(t, f.Invalidate(ctx, "a"))

		require.NoError(t, f.Clear(ctx))
		var got payload
		assert.ErrorIs(t, f.Get(ctx, "b", &got), ErrCacheMiss)
	})
}

func TestRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	r := newRedis(client, time.Minute)
	want := payload{Name: "品川", Lines: []string{"京急本線"}}

	var got payload
	assert.ErrorIs(t, r.Get(ctx, "k", &got), ErrCacheMiss)

	require.NoError(t, r.Set(ctx, "k", want, 0))
	require.NoError(t, r.Get(ctx, "k", &got))
	assert.Equal(t, want, got)
	assert.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, r.Get(ctx, "k", &got), ErrCacheMiss)

	require.NoError(t, r.Set(ctx, "a", want, time.Hour))
	require.NoError(t, r.Invalidate(ctx, "a"))
	assert.False(t, mr.Exists("a"))

	require.NoError(t, r.Set(ctx, "b", want, 0))
	require.NoError(t, r.Clear(ctx))
	assert.False(t, mr.Exists("b"))

	removed, err := r.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestNew(t *testing.T) {
	c, err := New(Config{Backend: "none"}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	c, err = New(Config{Backend: "memory", TTL: time.Minute}, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)

	dir := t.TempDir()
	c, err = New(Config{Backend: "file", Dir: dir}, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, dir, c.(*File).Dir())

	_, err = New(Config{Backend: "memcached"}, logger.Nop())
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	c, err = New(Config{Backend: "redis", RedisAddress: mr.Addr()}, logger.Nop())
	require.NoError(t, err)
	c.(*Redis).Close()
}
