// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appsettlement "github.com/debtsettle/backend/internal/application/settlement"
	"github.com/debtsettle/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Recomputer reclassifies debts and flags overdue instruments
type Recomputer interface {
	Recompute(ctx context.Context) (*appsettlement.RecomputeResult, error)
}

// DebtStatusSchedulerConfig holds configuration for the recompute job
type DebtStatusSchedulerConfig struct {
	Enabled bool

	// Interval between runs; the first run happens right after Start
	Interval time.Duration

	// JobTimeout bounds a single run
	JobTimeout time.Duration
}

// DefaultDebtStatusSchedulerConfig returns default configuration
func DefaultDebtStatusSchedulerConfig() DebtStatusSchedulerConfig {
	return DebtStatusSchedulerConfig{
		Enabled:    true,
		Interval:   time.Hour,
		JobTimeout: 10 * time.Minute,
	}
}

// DebtStatusSchedulerConfigFrom maps the scheduler section of the application config
func DebtStatusSchedulerConfigFrom(cfg config.SchedulerConfig) DebtStatusSchedulerConfig {
	return DebtStatusSchedulerConfig{
		Enabled:    cfg.Enabled,
		Interval:   cfg.Interval,
		JobTimeout: cfg.JobTimeout,
	}
}

// DebtStatusScheduler periodically recomputes debt statuses as time passes
type DebtStatusScheduler struct {
	service Recomputer
	config  DebtStatusSchedulerConfig
	logger  *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  atomic.Bool
	lastRun   atomic.Pointer[RunReport]
}

// RunReport describes the most recent recompute run
type RunReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Result    *appsettlement.RecomputeResult
	Err       error
}

// NewDebtStatusScheduler creates a new scheduler
func NewDebtStatusScheduler(service Recomputer, cfg DebtStatusSchedulerConfig, logger *zap.Logger) (*DebtStatusScheduler, error) {
	if cfg.Interval <= 0 || cfg.JobTimeout <= 0 {
		return nil, fmt.Errorf("%w: interval and job timeout must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DebtStatusScheduler{
		service: service,
		config:  cfg,
		logger:  logger.Named("debt-status-scheduler"),
	}, nil
}

// Start launches the background loop. It is a no-op when disabled or already running.
func (s *DebtStatusScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Debt status scheduler is disabled")
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Debt status scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run, bounded by ctx
func (s *DebtStatusScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Debt status scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (s *DebtStatusScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastRun returns the report of the latest finished run, or nil
func (s *DebtStatusScheduler) LastRun() *RunReport {
	return s.lastRun.Load()
}

// TriggerNow runs a recompute synchronously outside the regular cadence
func (s *DebtStatusScheduler) TriggerNow(ctx context.Context) (*RunReport, error) {
	if !s.IsRunning() {
		return nil, ErrSchedulerNotRunning
	}
	report, ok := s.runOnce(ctx)
	if !ok {
		return nil, ErrRunInProgress
	}
	return report, report.Err
}

func (s *DebtStatusScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	s.runOnce(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes one recompute unless another is already in flight
func (s *DebtStatusScheduler) runOnce(ctx context.Context) (*RunReport, bool) {
	report, ok := s.execute(ctx)
	if !ok {
		s.logger.Debug("Skipping recompute, previous run still in progress")
		return nil, false
	}
	s.lastRun.Store(report)

	if report.Err != nil {
		s.logger.Error("Debt status recompute failed",
			zap.Error(report.Err),
			zap.Duration("duration", report.Duration),
		)
		return report, true
	}

	fields := []zap.Field{zap.Duration("duration", report.Duration)}
	if r := report.Result; r != nil {
		fields = append(fields,
			zap.Int("debts_scanned", r.DebtsScanned),
			zap.Int("debts_changed", r.DebtsChanged),
			zap.Int("debts_skipped", r.DebtsSkipped),
			zap.Int("instruments_overdue", r.InstrumentsOverdue),
		)
	}
	s.logger.Info("Debt status recompute completed", fields...)
	return report, true
}

func (s *DebtStatusScheduler) execute(ctx context.Context) (*RunReport, bool) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, false
	}
	defer s.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	report := &RunReport{StartedAt: time.Now()}
	report.Result, report.Err = s.service.Recompute(ctx)
	report.Duration = time.Since(report.StartedAt)
	return report, true
}
