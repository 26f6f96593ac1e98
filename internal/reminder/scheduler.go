package reminder

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handle identifies one armed timer. Re-arming a key yields a new handle.
type Handle string

type entry struct {
	handle Handle
	at     time.Time
	timer  *time.Timer
}

// Scheduler keeps at most one pending timer per key. Arming a key that
// already has a timer replaces it, so a key never fires twice for one arm.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
	logger  *zap.Logger
	wg      sync.WaitGroup
	stopped bool
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
}

// SetClock overrides the time source used to compute delays.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Arm schedules fire to run at the given instant, replacing any timer for key.
// Instants in the past fire as soon as possible.
func (s *Scheduler) Arm(key string, at time.Time, fire func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ""
	}
	if old, ok := s.entries[key]; ok {
		if old.timer.Stop() {
			s.wg.Done()
		}
		s.logger.Debug("Replacing reminder timer", zap.String("key", key), zap.String("handle", string(old.handle)))
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	e := &entry{handle: Handle(uuid.New().String()), at: at}
	s.wg.Add(1)
	e.timer = time.AfterFunc(delay, func() {
		defer s.wg.Done()
		if !s.claim(key, e.handle) {
			return
		}
		fire()
	})
	s.entries[key] = e

	s.logger.Debug("Reminder armed",
		zap.String("key", key),
		zap.String("handle", string(e.handle)),
		zap.Time("at", at),
		zap.Duration("delay", delay))
	return e.handle
}

// claim removes the entry if it still belongs to handle.
func (s *Scheduler) claim(key string, handle Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || e.handle != handle || s.stopped {
		return false
	}
	delete(s.entries, key)
	return true
}

// Cancel stops the pending timer for key and reports whether one existed.
func (s *Scheduler) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.timer.Stop() {
		s.wg.Done()
	}
	delete(s.entries, key)
	return true
}

// Active returns the pending handle and fire time for key.
func (s *Scheduler) Active(key string) (Handle, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return "", time.Time{}, false
	}
	return e.handle, e.at, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stop cancels every pending timer and waits for running callbacks to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for key, e := range s.entries {
		if e.timer.Stop() {
			s.wg.Done()
		}
		delete(s.entries, key)
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Reminder scheduler stopped")
}
