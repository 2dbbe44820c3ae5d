package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ptvtracker-planner/internal/common/logger"
)

type SchedulerConfig struct {
	Interval     time.Duration
	InitialDelay time.Duration
	KeepVersions int
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Interval:     24 * time.Hour,
		InitialDelay: 5 * time.Minute,
		KeepVersions: 3,
	}
}

// Scheduler prunes old versions on a fixed interval.
type Scheduler struct {
	maintenance *Maintenance
	logger      logger.Logger
	config      SchedulerConfig

	mu        sync.RWMutex
	isRunning bool
	cancelFn  context.CancelFunc
	done      chan struct{}
	last      *PruneResult
}

func NewScheduler(store Store, log logger.Logger, config SchedulerConfig) *Scheduler {
	log = log.With("component", "maintenance")
	return &Scheduler{
		maintenance: New(store, log),
		logger:      log,
		config:      config,
	}
}

// Start launches the pruning loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("maintenance scheduler is already running")
	}
	if s.config.Interval <= 0 {
		return fmt.Errorf("maintenance interval must be positive, got %s", s.config.Interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFn = cancel
	s.isRunning = true
	s.done = make(chan struct{})

	s.logger.Info("Starting maintenance scheduler",
		"interval", s.config.Interval,
		"initial_delay", s.config.InitialDelay,
		"keep_versions", s.config.KeepVersions)

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for a run in progress to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.cancelFn()
	s.isRunning = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Maintenance scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// LastResult returns the outcome of the most recent successful run.
func (s *Scheduler) LastResult() (PruneResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return PruneResult{}, false
	}
	return *s.last, true
}

// TriggerPrune runs a prune immediately, outside the schedule.
func (s *Scheduler) TriggerPrune(ctx context.Context) error {
	s.logger.Info("Manual version pruning triggered", "keep_versions", s.config.KeepVersions)
	return s.run(ctx)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	initial := time.NewTimer(s.config.InitialDelay)
	defer initial.Stop()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-initial.C:
			s.scheduledRun(ctx)
		case <-ticker.C:
			s.scheduledRun(ctx)
		}
	}
}

func (s *Scheduler) scheduledRun(ctx context.Context) {
	if err := s.run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Scheduled version pruning failed", "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context) error {
	result, err := s.maintenance.PruneOldVersions(ctx, s.config.KeepVersions)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()
	return nil
}
