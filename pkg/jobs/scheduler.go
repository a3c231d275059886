package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dispatcher accepts jobs without blocking.
type Dispatcher interface {
	TryEnqueue(job Job) error
}

// SchedulerConfig configures a fixed-interval trigger.
type SchedulerConfig struct {
	Interval time.Duration
	JobType  string
	// RunOnStart fires one job immediately instead of waiting a full interval.
	RunOnStart bool
	// OnSkip is invoked when a tick is dropped because the dispatcher is busy.
	OnSkip func()
	Logger *zap.Logger
}

// Scheduler fires a job on every tick. A tick that finds the dispatcher busy
// is skipped rather than queued behind the running job.
type Scheduler struct {
	dispatcher Dispatcher
	cfg        SchedulerConfig
	logger     *zap.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewScheduler constructs a Scheduler.
func NewScheduler(dispatcher Dispatcher, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.JobType == "" {
		cfg.JobType = "tick"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Start launches the ticker goroutine. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go s.loop(runCtx, s.done)
	s.logger.Info("scheduler started", zap.String("job_type", s.cfg.JobType), zap.Duration("interval", s.cfg.Interval))
}

// Stop clears the pending timer and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	done := s.done
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped", zap.String("job_type", s.cfg.JobType))
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	if s.cfg.RunOnStart {
		s.fire("startup")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire("schedule")
		}
	}
}

func (s *Scheduler) fire(trigger string) {
	err := s.dispatcher.TryEnqueue(NewJob(s.cfg.JobType, trigger))
	switch {
	case err == nil:
	case errors.Is(err, ErrBusy):
		s.logger.Debug("previous job still running, tick skipped", zap.String("job_type", s.cfg.JobType))
		if s.cfg.OnSkip != nil {
			s.cfg.OnSkip()
		}
	default:
		s.logger.Warn("tick dispatch failed", zap.String("job_type", s.cfg.JobType), zap.Error(err))
	}
}
