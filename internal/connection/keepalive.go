package connection

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler fires a liveness signal at a fixed rate on its own goroutine.
// At most one loop runs per Scheduler; Start replaces a running loop.
type Scheduler struct {
	logger *slog.Logger

	// mu serialises Start/Stop so two loops never overlap.
	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	fired    atomic.Int64
	failures atomic.Int64
}

// NewScheduler creates an idle scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger}
}

// Start begins calling onFire every period. A running loop is stopped first.
func (s *Scheduler) Start(period time.Duration, onFire func() error) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	go s.loop(period, onFire, stop, done)

	s.logger.Debug("keep-alive started", "period", period)
	return nil
}

// Stop cancels future firings and waits for an in-flight one to finish.
// No firing happens after Stop returns. Stopping an idle scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Fired returns how many times onFire has been called.
func (s *Scheduler) Fired() int64 {
	return s.fired.Load()
}

// Failures returns how many firings returned an error or panicked.
func (s *Scheduler) Failures() int64 {
	return s.failures.Load()
}

func (s *Scheduler) stopLocked() {
	if s.stop == nil {
		return
	}

	close(s.stop)
	<-s.done
	s.stop, s.done = nil, nil

	s.logger.Debug("keep-alive stopped")
}

func (s *Scheduler) loop(period time.Duration, onFire func() error, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			// A tick and a stop can be ready together; stop wins.
			select {
			case <-stop:
				return
			default:
			}
			s.fire(onFire)
		}
	}
}

func (s *Scheduler) fire(onFire func() error) {
	s.fired.Add(1)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("keep-alive panicked: %v", r)
			}
		}()
		return onFire()
	}()

	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("keep-alive signal failed, skipping", "error", err)
	}
}
