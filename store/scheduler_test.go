package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"novyn/models"
)

// countingStore records saves so the tests can observe coalescing.
type countingStore struct {
	mu    sync.Mutex
	saves int
	last  *models.Snapshot
	fail  error
}

func (c *countingStore) Load(context.Context) (*models.Snapshot, error) { return nil, nil }

func (c *countingStore) Save(_ context.Context, snap *models.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.saves++
	c.last = snap
	return nil
}

func (c *countingStore) Close() error { return nil }

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

func newTestScheduler(st StateStore) *Scheduler {
	s := NewScheduler(st, func() *models.Snapshot { return &models.Snapshot{} })
	s.delay = 10 * time.Millisecond
	return s
}

func TestSchedulerCoalescesMarks(t *testing.T) {
	cs := &countingStore{}
	s := newTestScheduler(cs)

	for i := 0; i < 20; i++ {
		s.MarkDirty()
	}

	deadline := time.Now().Add(time.Second)
	for cs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	// Give a straggler flush a chance to show up before counting.
	time.Sleep(50 * time.Millisecond)
	if got := cs.count(); got != 1 {
		t.Errorf("expected 1 coalesced save, got %d", got)
	}
}

func TestSchedulerFlushIsDeterministic(t *testing.T) {
	cs := &countingStore{}
	s := newTestScheduler(cs)

	s.MarkDirty()
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if cs.count() == 0 {
		t.Error("Flush should write without waiting for the debounce timer")
	}
	if cs.last == nil {
		t.Error("Flush should write the current snapshot")
	}
}

func TestSchedulerFlushWithoutMark(t *testing.T) {
	cs := &countingStore{}
	s := newTestScheduler(cs)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if cs.count() != 1 {
		t.Error("an explicit Flush always writes")
	}
}

func TestSchedulerStopPreventsScheduledWrites(t *testing.T) {
	cs := &countingStore{}
	s := newTestScheduler(cs)

	s.MarkDirty()
	s.Stop()
	s.MarkDirty() // ignored after Stop

	time.Sleep(50 * time.Millisecond)
	if got := cs.count(); got != 0 {
		t.Errorf("expected no scheduled writes after Stop, got %d", got)
	}

	// The final explicit flush still works.
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush after Stop failed: %v", err)
	}
	if cs.count() != 1 {
		t.Error("explicit Flush after Stop should write once")
	}
}

func TestSchedulerSaveErrorDoesNotWedge(t *testing.T) {
	cs := &countingStore{fail: errors.New("disk full")}
	s := newTestScheduler(cs)

	s.MarkDirty()
	time.Sleep(50 * time.Millisecond)

	// Error cleared: the next mutation persists normally.
	cs.mu.Lock()
	cs.fail = nil
	cs.mu.Unlock()

	s.MarkDirty()
	deadline := time.Now().Add(time.Second)
	for cs.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if cs.count() == 0 {
		t.Error("scheduler should recover after a failed save")
	}
}

func TestSchedulerConcurrentMarks(t *testing.T) {
	cs := &countingStore{}
	s := newTestScheduler(cs)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.MarkDirty()
			}
		}()
	}
	wg.Wait()

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if cs.count() == 0 {
		t.Error("expected at least one save")
	}
}
