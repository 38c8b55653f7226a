package route_search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/pkg/route-search/models"
)

// Searcher is the part of Service the watcher drives.
type Searcher interface {
	SearchMany(ctx context.Context, qs []models.SearchQuery) []BatchResult
	Invalidate(ctx context.Context, q models.SearchQuery) error
}

type WatchConfig struct {
	Interval time.Duration
	Queries  []models.SearchQuery
}

// Watcher periodically re-runs a fixed set of searches with fresh results and
// warns when a pair stops producing routes, which usually means the result
// markup changed.
type Watcher struct {
	config   WatchConfig
	searcher Searcher
	logger   logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewWatcher(config WatchConfig, searcher Searcher, logger logger.Logger) *Watcher {
	return &Watcher{
		config:   config,
		searcher: searcher,
		logger:   logger,
	}
}

// Start checks every query immediately, then once per interval until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if len(w.config.Queries) == 0 {
		return fmt.Errorf("no watch routes configured")
	}
	if w.config.Interval <= 0 {
		return fmt.Errorf("watch interval must be positive")
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	w.logger.Info("Starting route watcher",
		"interval", w.config.Interval.String(),
		"routes", len(w.config.Queries))

	w.Check(ctx)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Route watcher stopped")
			return nil
		case <-ticker.C:
			w.Check(ctx)
		}
	}
}

func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("watcher not running")
	}

	if w.cancel != nil {
		w.cancel()
	}
	return nil
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Check runs every watched query once and returns the per-query results.
func (w *Watcher) Check(ctx context.Context) []BatchResult {
	for _, q := range w.config.Queries {
		if err := w.searcher.Invalidate(ctx, q); err != nil {
			w.logger.Warn("Failed to invalidate cached search", "from", q.From, "to", q.To, "error", err)
		}
	}

	results := w.searcher.SearchMany(ctx, w.config.Queries)

	empty := 0
	for _, res := range results {
		switch {
		case res.Err != nil:
			w.logger.Error("Watched search failed", "from", res.Query.From, "to", res.Query.To, "error", res.Err)
		case len(res.Routes) == 0:
			empty++
			w.logger.Warn("Watched search returned no routes", "from", res.Query.From, "to", res.Query.To)
		default:
			w.logger.Info("Watched search", "from", res.Query.From, "to", res.Query.To, "routes", len(res.Routes))
		}
	}

	w.logger.Debug("Watch cycle completed", "routes", len(results), "empty", empty)
	return results
}
