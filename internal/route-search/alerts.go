package route_search

import (
	"context"
	"sync"
	"time"

	"github.com/ytransit-data/internal/common/logger"
	"github.com/ytransit-data/internal/route-search/parser"
)

// Notifier delivers an alert message with structured fields.
type Notifier interface {
	Enabled() bool
	SendLogMessage(ctx context.Context, level, message string, fields map[string]interface{}) error
}

// AlertSink forwards markup-shape diagnostics to a Notifier. Only the
// fallback signals are sent; each signal is sent at most once per cooldown.
type AlertSink struct {
	notifier Notifier
	logger   logger.Logger
	cooldown time.Duration
	queue    chan parser.Diagnostic

	mu       sync.Mutex
	lastSent map[parser.Signal]time.Time
	now      func() time.Time
}

func NewAlertSink(notifier Notifier, log logger.Logger, cooldown time.Duration) *AlertSink {
	return &AlertSink{
		notifier: notifier,
		logger:   log,
		cooldown: cooldown,
		queue:    make(chan parser.Diagnostic, 16),
		lastSent: make(map[parser.Signal]time.Time),
		now:      time.Now,
	}
}

// Report queues d without blocking the parse that produced it.
func (s *AlertSink) Report(d parser.Diagnostic) {
	if !s.notifier.Enabled() || !alertable(d.Signal) || s.throttled(d.Signal) {
		return
	}

	select {
	case s.queue <- d:
	default:
		s.logger.Warn("Alert queue is full, dropping diagnostic", "signal", d.Signal.String())
	}
}

// Run delivers queued alerts until ctx is done.
func (s *AlertSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-s.queue:
			s.send(ctx, d)
		}
	}
}

func (s *AlertSink) send(ctx context.Context, d parser.Diagnostic) {
	level := "WARN"
	if d.Signal == parser.MalformedFallbackPayload {
		level = "ERROR"
	}

	fields := map[string]interface{}{"signal": d.Signal.String()}
	for k, v := range d.Fields {
		fields[k] = v
	}
	if d.Err != nil {
		fields["error"] = d.Err.Error()
	}

	if err := s.notifier.SendLogMessage(ctx, level, d.Message, fields); err != nil {
		s.logger.Error("Failed to send alert", "signal", d.Signal.String(), "error", err)
	}
}

func (s *AlertSink) throttled(sig parser.Signal) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.lastSent[sig]; ok && now.Sub(last) < s.cooldown {
		return true
	}
	s.lastSent[sig] = now
	return false
}

func alertable(sig parser.Signal) bool {
	return sig == parser.FallbackUnsupported || sig == parser.MalformedFallbackPayload
}
