package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ytransit-data/internal/common/cache"
	"github.com/ytransit-data/internal/common/logger"
)

// HistoryPurger deletes search history recorded before a cutoff.
type HistoryPurger interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupResult reports one maintenance run.
type CleanupResult struct {
	CacheEntriesPurged int           `json:"cache_entries_purged"`
	HistoryDeleted     int64         `json:"history_deleted"`
	Duration           time.Duration `json:"duration"`
}

// Maintenance removes expired cache entries and old search history.
type Maintenance struct {
	cache     cache.Cache
	history   HistoryPurger
	retention time.Duration
	logger    logger.Logger
	now       func() time.Time
}

// New creates a Maintenance. history may be nil when history is disabled.
func New(c cache.Cache, history HistoryPurger, retention time.Duration, logger logger.Logger) *Maintenance {
	return &Maintenance{
		cache:     c,
		history:   history,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs both cleanups. A failing step does not stop the other; their
// errors are joined.
func (m *Maintenance) Run(ctx context.Context) (CleanupResult, error) {
	start := m.now()
	var result CleanupResult
	var errs []error

	if m.cache != nil {
		purged, err := m.cache.Purge(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purging cache: %w", err))
		}
		result.CacheEntriesPurged = purged
	}

	if m.history != nil && m.retention > 0 {
		cutoff := m.now().Add(-m.retention)
		deleted, err := m.history.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			errs = append(errs, fmt.Errorf("deleting old history: %w", err))
		}
		result.HistoryDeleted = deleted
	}

	result.Duration = m.now().Sub(start)

	m.logger.Info("Maintenance completed",
		"cache_entries_purged", result.CacheEntriesPurged,
		"history_deleted", result.HistoryDeleted,
		"duration", result.Duration.String())

	return result, errors.Join(errs...)
}
