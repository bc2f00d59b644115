package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/dpup/prefab/logging"

	"github.com/dpup/wolfcreekpass/server/internal/lock"
)

// ErrCycleInProgress is returned when another cycle holds the lock
var ErrCycleInProgress = errors.New("capture cycle already in progress")

// CycleRunner runs one capture cycle
type CycleRunner interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// Scheduler runs a capture cycle immediately and then on a fixed interval,
// never more than one at a time
type Scheduler struct {
	runner   CycleRunner
	locker   lock.Locker
	interval time.Duration
	timeout  time.Duration

	mu       sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	running  bool
}

// NewScheduler creates a scheduler. A zero timeout leaves cycles unbounded.
func NewScheduler(runner CycleRunner, locker lock.Locker, interval, timeout time.Duration) *Scheduler {
	return &Scheduler{
		runner:   runner,
		locker:   locker,
		interval: interval,
		timeout:  timeout,
	}
}

// Start begins the background loop
func (s *Scheduler) Start(ctx context.Context) error {
	ctx = logging.EnsureLogger(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.interval <= 0 {
		return errors.New("schedule interval must be positive")
	}

	s.running = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	log.Printf("Starting capture cycles every %v", s.interval)
	go s.loop(ctx, s.stopChan, s.done)
	return nil
}

// Stop signals the loop to exit and waits for an in-flight cycle to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Printf("Stopped capture scheduler")
}

// IsRunning reports whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Capture scheduler stopping due to context cancellation")
			s.markStopped()
			return
		case <-stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		log.Printf("Skipping scheduled cycle: %v", err)
	case err != nil:
		log.Printf("Scheduled cycle failed: %v", err)
	default:
		log.Printf("Scheduled cycle %s finished: %s", res.CycleID(), res.Status())
	}
}

// RunOnce runs a single cycle under the lock. It returns ErrCycleInProgress
// without running when the lock is held elsewhere.
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleResult, error) {
	ok, err := s.locker.TryLock(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrCycleInProgress
	}
	defer func() {
		if err := s.locker.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.Printf("Failed to release cycle lock: %v", err)
		}
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.runner.RunCycle(ctx)
}
