package backfill

import (
	"context"
	"sync"
	"time"

	"github.com/finsight/finsight/internal/log"
)

// SupervisorState is the lifecycle state of the periodic refresh loop.
type SupervisorState string

const (
	StateStopped SupervisorState = "stopped"
	StateRunning SupervisorState = "running"
)

// Refresher is one unit of periodic work. The data ingestors and the
// Backfiller all satisfy it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Supervisor runs a set of refreshers on a fixed interval. It has exactly
// two states, stopped and running, and Start/Stop transitions are
// idempotent. Cancellation is delivered through the context handed to
// each refresher.
type Supervisor struct {
	refreshers []Refresher
	interval   time.Duration
	logger     log.Logger

	mu     sync.Mutex
	state  SupervisorState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSupervisor constructs a stopped Supervisor.
func NewSupervisor(interval time.Duration, logger log.Logger, refreshers ...Refresher) *Supervisor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Supervisor{
		refreshers: refreshers,
		interval:   interval,
		logger:     logger,
		state:      StateStopped,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() SupervisorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the refresh loop. Starting a running supervisor is a
// no-op. The loop runs one immediate pass, then one per interval.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateRunning

	go s.loop(loopCtx, s.done)
	s.logger.Info("refresh supervisor started", "interval", s.interval)
}

// Stop cancels the loop and waits for the in-flight pass to finish.
// Stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.state = StateStopped
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("refresh supervisor stopped")
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
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

func (s *Supervisor) runOnce(ctx context.Context) {
	for _, r := range s.refreshers {
		if ctx.Err() != nil {
			return
		}
		if err := r.Refresh(ctx); err != nil {
			s.logger.Error("refresh failed", "error", err)
		}
	}
}
