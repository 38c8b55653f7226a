package route_search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/singleflight"

	"github.com/ytransit-data/internal/common/cache"
	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/internal/route-search/parser"
	"github.com/ytransit-data/internal/route-search/scraper"
	"github.com/ytransit-data/pkg/route-search/models"
)

const (
	methodSearchRoutes = "search_routes"
	methodSuggestions  = "suggestions"
)

// HistoryRecorder accepts completed searches for asynchronous storage.
type HistoryRecorder interface {
	Record(rec models.SearchRecord) bool
}

type Options struct {
	Cache            cache.Cache
	CacheTTL         time.Duration
	Sink             parser.Sink
	Recorder         HistoryRecorder
	ParseWorkers     int
	BatchConcurrency int
}

// BatchResult is the outcome of one query in a SearchMany call.
type BatchResult struct {
	Query  models.SearchQuery   `json:"query" yaml:"query"`
	Routes []models.RouteRecord `json:"routes" yaml:"routes"`
	Err    error                `json:"-" yaml:"-"`
	Error  string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// Service runs route searches and station suggestions against the transit
// site, with caching and request deduplication.
type Service struct {
	fetcher  scraper.Fetcher
	cache    cache.Cache
	ttl      time.Duration
	sink     parser.Sink
	recorder HistoryRecorder
	logger   logger.Logger

	group    singleflight.Group
	flightMu sync.Mutex
	flights  map[string]*flight
	parseSem chan struct{}
	batch    int
	now      func() time.Time
}

func NewService(fetcher scraper.Fetcher, log logger.Logger, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.Sink == nil {
		opts.Sink = parser.NewLogSink(log)
	}
	if opts.ParseWorkers <= 0 {
		opts.ParseWorkers = 4
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 4
	}

	return &Service{
		fetcher:  fetcher,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		sink:     opts.Sink,
		recorder: opts.Recorder,
		logger:   log,
		flights:  make(map[string]*flight),
		parseSem: make(chan struct{}, opts.ParseWorkers),
		batch:    opts.BatchConcurrency,
		now:      time.Now,
	}
}

// SearchRoutes returns the routes for q. No routes is an empty slice, not an
// error.
func (s *Service) SearchRoutes(ctx context.Context, q models.SearchQuery) ([]models.RouteRecord, error) {
	if err := scraper.ValidateQuery(q); err != nil {
		return nil, err
	}

	key := cache.Key(methodSearchRoutes, q.Params())

	var cached []models.RouteRecord
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		s.logger.Debug("Route search served from cache", "from", q.From, "to", q.To, "routes", len(cached))
		return nonNil(cached), nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache lookup failed", "key", key, "error", err)
	}

	res, err := s.shared(ctx, key, func(fctx context.Context) (interface{}, error) {
		return s.fetchRoutes(fctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	if res.Shared {
		s.logger.Debug("Route search shared with concurrent caller", "from", q.From, "to", q.To)
	}
	return res.Val.([]models.RouteRecord), nil
}

func (s *Service) fetchRoutes(ctx context.Context, q models.SearchQuery, key string) ([]models.RouteRecord, error) {
	markup, err := s.fetcher.FetchSearchPage(ctx, q)
	if err != nil {
		return nil, err
	}

	routes, err := s.parse(ctx, markup)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, routes, s.ttl); err != nil {
		s.logger.Warn("Failed to cache route search", "key", key, "error", err)
	}

	s.logger.Info("Route search completed", "from", q.From, "to", q.To, "routes", len(routes))

	if s.recorder != nil {
		s.recorder.Record(models.SearchRecord{
			CacheKey:   key,
			From:       q.From,
			To:         q.To,
			Date:       q.Date,
			Time:       q.Time,
			Via:        q.Via,
			Sort:       q.Sort,
			RouteCount: len(routes),
			Routes:     routes,
			SearchedAt: s.now(),
		})
	}

	return routes, nil
}

// flight is the context of one deduplicated call. It ends when its last
// caller has left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// shared runs fn once for all concurrent callers of key. fn gets a context
// that outlives any single caller; a caller that gives up only returns early.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (singleflight.Result, error) {
	fctx, leave := s.join(ctx, key)
	defer leave()

	ch := s.group.DoChan(key, func() (interface{}, error) {
		return fn(fctx)
	})

	select {
	case <-ctx.Done():
		return singleflight.Result{}, ctx.Err()
	case res := <-ch:
		return res, res.Err
	}
}

func (s *Service) join(ctx context.Context, key string) (context.Context, func()) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()

	f, ok := s.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++

	return f.ctx, func() {
		s.flightMu.Lock()
		defer s.flightMu.Unlock()

		f.waiters--
		if f.waiters > 0 {
			return
		}
		f.cancel()
		if s.flights[key] == f {
			delete(s.flights, key)
			// a caller arriving now must not join the abandoned call
			s.group.Forget(key)
		}
	}
}

// parse runs extraction under the parse semaphore. The result is discarded
// if every caller has gone by the time it finishes.
func (s *Service) parse(ctx context.Context, markup string) ([]models.RouteRecord, error) {
	select {
	case s.parseSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	routes := parser.ParseHTML(markup, s.sink)
	<-s.parseSem

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return routes, nil
}

// SuggestStations returns station name candidates for value.
func (s *Service) SuggestStations(ctx context.Context, value string) (models.StationSuggestions, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, scraper.ErrEmptyStation
	}

	key := cache.Key(methodSuggestions, map[string]string{"value": value})

	var cached models.StationSuggestions
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Cache lookup failed", "key", key, "error", err)
	}

	res, err := s.shared(ctx, key, func(fctx context.Context) (interface{}, error) {
		return s.fetcher.FetchSuggestions(fctx, value)
	})
	if err != nil {
		return nil, err
	}

	suggestions := res.Val.(models.StationSuggestions)
	if err := s.cache.Set(ctx, key, suggestions, s.ttl); err != nil {
		s.logger.Warn("Failed to cache suggestions", "key", key, "error", err)
	}
	return suggestions, nil
}

// SearchMany runs qs concurrently. Results keep the order of qs and a failed
// query does not fail the others.
func (s *Service) SearchMany(ctx context.Context, qs []models.SearchQuery) []BatchResult {
	results := make([]BatchResult, len(qs))

	p := pool.New().WithMaxGoroutines(s.batch)
	for i, q := range qs {
		i, q := i, q
		p.Go(func() {
			routes, err := s.SearchRoutes(ctx, q)
			results[i] = BatchResult{Query: q, Routes: nonNil(routes), Err: err}
			if err != nil {
				results[i].Error = err.Error()
			}
		})
	}
	p.Wait()

	return results
}

// Invalidate drops the cached result for q.
func (s *Service) Invalidate(ctx context.Context, q models.SearchQuery) error {
	return s.cache.Invalidate(ctx, cache.Key(methodSearchRoutes, q.Params()))
}

func nonNil(routes []models.RouteRecord) []models.RouteRecord {
	if routes == nil {
		return []models.RouteRecord{}
	}
	return routes
}
