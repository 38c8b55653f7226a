package route_search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/pkg/route-search/models"
)

type fakeSearcher struct {
	mu          sync.Mutex
	cycles      int
	invalidated []models.SearchQuery
}

func (s *fakeSearcher) SearchMany(ctx context.Context, qs []models.SearchQuery) []BatchResult {
	s.mu.Lock()
	s.cycles++
	s.mu.Unlock()

	results := make([]BatchResult, len(qs))
	for i, q := range qs {
		results[i] = BatchResult{Query: q, Routes: []models.RouteRecord{}}
		switch q.To {
		case "新宿":
			results[i].Routes = []models.RouteRecord{{}}
		case "故障":
			results[i].Err = errors.New("upstream down")
		}
	}
	return results
}

func (s *fakeSearcher) Invalidate(ctx context.Context, q models.SearchQuery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, q)
	return nil
}

func (s *fakeSearcher) cycleCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

func TestWatcherCheck(t *testing.T) {
	queries := []models.SearchQuery{
		{From: "渋谷", To: "新宿"},
		{From: "渋谷", To: "無人駅"},
		{From: "渋谷", To: "故障"},
	}
	s := &fakeSearcher{}
	w := NewWatcher(WatchConfig{Interval: time.Minute, Queries: queries}, s, logger.Nop())

	results := w.Check(context.Background())
	require.Len(t, results, 3)
	assert.Len(t, results[0].Routes, 1)
	assert.Empty(t, results[1].Routes)
	assert.Error(t, results[2].Err)
	assert.Equal(t, queries, s.invalidated)
}

func TestWatcherStartStop(t *testing.T) {
	s := &fakeSearcher{}
	w := NewWatcher(WatchConfig{
		Interval: 10 * time.Millisecond,
		Queries:  []models.SearchQuery{{From: "渋谷", To: "新宿"}},
	}, s, logger.Nop())

	assert.Error(t, w.Stop())

	done := make(chan error, 1)
	go func() { done <- w.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.cycleCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
	assert.False(t, w.IsRunning())
}

func TestWatcherRequiresRoutes(t *testing.T) {
	w := NewWatcher(WatchConfig{Interval: time.Minute}, &fakeSearcher{}, logger.Nop())
	assert.Error(t, w.Start(context.Background()))

	w = NewWatcher(WatchConfig{Queries: []models.SearchQuery{{From: "a", To: "b"}}}, &fakeSearcher{}, logger.Nop())
	assert.Error(t, w.Start(context.Background()))
}
