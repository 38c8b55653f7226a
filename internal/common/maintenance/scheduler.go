package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ytransit-data/internal/common/logger"
)

// CleanupScheduler runs maintenance periodically
type CleanupScheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig
	isRunning   bool
	mu          sync.RWMutex
	cancelFn    context.CancelFunc
	runMu       sync.Mutex
	lastRun     time.Time
	lastResult  CleanupResult
}

type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     time.Hour,
		InitialDelay: time.Minute,
	}
}

func NewCleanupScheduler(m *Maintenance, logger logger.Logger, config SchedulerConfig) *CleanupScheduler {
	return &CleanupScheduler{
		maintenance: m,
		logger:      logger,
		config:      config,
	}
}

// Start begins the cleanup scheduling
func (s *CleanupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cleanup scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true

	s.logger.Info("Starting cleanup scheduler",
		"interval", s.config.Interval.String(),
		"initial_delay", s.config.InitialDelay.String())

	go s.cleanupLoop(ctx)

	return nil
}

// Stop stops the cleanup scheduler
func (s *CleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	if s.cancelFn != nil {
		s.cancelFn()
	}

	s.isRunning = false
	s.logger.Info("Cleanup scheduler stopped")
}

func (s *CleanupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *CleanupScheduler) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	initialDelay := time.NewTimer(s.config.InitialDelay)
	defer initialDelay.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Cleanup loop stopping")
			return

		case <-initialDelay.C:
			s.performCleanup(ctx)

		case <-ticker.C:
			s.performCleanup(ctx)
		}
	}
}

func (s *CleanupScheduler) performCleanup(ctx context.Context) {
	if _, err := s.TriggerCleanup(ctx); err != nil {
		s.logger.Error("Scheduled cleanup failed", "error", err)
	}
}

// TriggerCleanup runs maintenance now. Runs never overlap.
func (s *CleanupScheduler) TriggerCleanup(ctx context.Context) (CleanupResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.maintenance.Run(ctx)

	s.mu.Lock()
	s.lastRun = s.maintenance.now()
	s.lastResult = result
	s.mu.Unlock()

	return result, err
}

// GetStatus returns the current status of the cleanup scheduler
func (s *CleanupScheduler) GetStatus() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"is_running": s.isRunning,
		"interval":   s.config.Interval.String(),
	}
	if !s.lastRun.IsZero() {
		status["last_run"] = s.lastRun
		status["last_result"] = s.lastResult
	}
	return status
}
