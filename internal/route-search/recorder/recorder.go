package recorder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/pkg/route-search/models"
)

// Writer persists one search record.
type Writer interface {
	RecordSearch(ctx context.Context, rec models.SearchRecord) (int64, error)
}

type Stats struct {
	Recorded int64
	Dropped  int64
	Failed   int64
}

// Recorder writes search records off the request path. Records are queued on
// a buffered channel and dropped when it is full.
type Recorder struct {
	writer       Writer
	logger       logger.Logger
	queue        chan models.SearchRecord
	writeTimeout time.Duration

	mu        sync.RWMutex
	isRunning bool
	closed    bool
	done      chan struct{}

	recorded atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

func New(writer Writer, log logger.Logger, buffer int) *Recorder {
	if buffer <= 0 {
		buffer = 100
	}
	return &Recorder{
		writer:       writer,
		logger:       log,
		queue:        make(chan models.SearchRecord, buffer),
		writeTimeout: 10 * time.Second,
		done:         make(chan struct{}),
	}
}

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("recorder is already running")
	}
	if r.closed {
		return fmt.Errorf("recorder is stopped")
	}

	r.isRunning = true
	go r.process(ctx)

	r.logger.Info("Search history recorder started", "buffer", cap(r.queue))
	return nil
}

// Record queues rec. It reports false when the record was dropped.
func (r *Recorder) Record(rec models.SearchRecord) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.queue <- rec:
		return true
	default:
		r.dropped.Add(1)
		r.logger.Warn("History queue is full, dropping search", "from", rec.From, "to", rec.To)
		return false
	}
}

// Stop closes the queue and waits for queued records to be written.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	running := r.isRunning
	r.mu.Unlock()

	if running {
		<-r.done
	}
	r.logger.Info("Search history recorder stopped",
		"recorded", r.recorded.Load(),
		"dropped", r.dropped.Load(),
		"failed", r.failed.Load())
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
		Failed:   r.failed.Load(),
	}
}

func (r *Recorder) process(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Recorder context cancelled", "pending", len(r.queue))
			return
		case rec, ok := <-r.queue:
			if !ok {
				return
			}
			r.write(ctx, rec)
		}
	}
}

func (r *Recorder) write(ctx context.Context, rec models.SearchRecord) {
	writeCtx, cancel := context.WithTimeout(ctx, r.writeTimeout)
	defer cancel()

	id, err := r.writer.RecordSearch(writeCtx, rec)
	if err != nil {
		r.failed.Add(1)
		r.logger.Error("Failed to record search", "from", rec.From, "to", rec.To, "error", err)
		return
	}

	r.recorded.Add(1)
	r.logger.Debug("Search recorded", "search_id", id, "route_count", rec.RouteCount)
}
