package store

import (
	"context"
	"log"
	"sync"
	"time"

	"novyn/models"
)

// DefaultFlushDelay is the quiet period after a mutation before the
// snapshot is written out.
const DefaultFlushDelay = 180 * time.Millisecond

// Scheduler debounces snapshot writes. Any mutation marks the state dirty;
// mutations within the quiet period collapse into a single write, and
// writes never overlap: a mark arriving while a flush is in flight chains
// exactly one more flush after it.
type Scheduler struct {
	store    StateStore
	snapshot func() *models.Snapshot
	delay    time.Duration

	mu       sync.Mutex
	cond     *sync.Cond
	timer    *time.Timer
	flushing bool
	pending  bool
	stopped  bool
}

// NewScheduler wires the scheduler to a store and a snapshot source. The
// snapshot func is expected to do its own state locking.
func NewScheduler(store StateStore, snapshot func() *models.Snapshot) *Scheduler {
	s := &Scheduler{
		store:    store,
		snapshot: snapshot,
		delay:    DefaultFlushDelay,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// MarkDirty schedules a flush after the debounce window, resetting the
// window if one is already pending.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.flushing {
		s.pending = true
		s.mu.Unlock()
		return
	}
	s.flushing = true
	s.mu.Unlock()

	s.writeLoop()
}

// writeLoop performs the flush and any flush chained behind it, then
// releases the in-flight slot.
func (s *Scheduler) writeLoop() {
	for {
		if err := s.store.Save(context.Background(), s.snapshot()); err != nil {
			// In-memory state stays authoritative; retry happens on the
			// next mutation.
			log.Printf("Failed to persist chat state: %v", err)
		}

		s.mu.Lock()
		if s.pending {
			s.pending = false
			s.mu.Unlock()
			continue
		}
		s.flushing = false
		s.cond.Broadcast()
		s.mu.Unlock()
		return
	}
}

// Flush cancels any pending debounce, waits out an in-flight write, and
// writes the current snapshot before returning. Used at shutdown and for
// deterministic tests.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	for s.flushing {
		s.cond.Wait()
	}
	s.flushing = true
	s.mu.Unlock()

	err := s.store.Save(ctx, s.snapshot())

	s.mu.Lock()
	s.pending = false
	s.flushing = false
	s.cond.Broadcast()
	s.mu.Unlock()

	return err
}

// Stop prevents any further scheduled flushes. A final Flush can still be
// issued explicitly afterwards.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
