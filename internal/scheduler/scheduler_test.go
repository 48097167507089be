package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/antufev/gracebot/internal/domain"
)

// captureSender records delivered notifications.
type captureSender struct {
	mu        sync.Mutex
	delivered []domain.Notification
}

func (c *captureSender) Deliver(n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, n)
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.delivered)
}

func (c *captureSender) waitFor(t *testing.T, n int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if c.count() >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d deliveries, got %d", n, c.count())
}

func newTestScheduler(t *testing.T) (*Scheduler, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	s := New(time.UTC, sender)
	s.Start()
	t.Cleanup(s.Stop)
	return s, sender
}

func TestImmediateFiresNow(t *testing.T) {
	s, sender := newTestScheduler(t)

	if _, err := s.Schedule(domain.Notification{ID: "n1", Trigger: domain.Immediately()}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	sender.waitFor(t, 1, time.Second)
}

func TestAbsoluteTimeFires(t *testing.T) {
	s, sender := newTestScheduler(t)

	at := time.Now().Add(50 * time.Millisecond)
	if _, err := s.Schedule(domain.Notification{ID: "n1", Trigger: domain.At(at)}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	sender.waitFor(t, 1, time.Second)
}

func TestPastAbsoluteTimeFiresImmediately(t *testing.T) {
	s, sender := newTestScheduler(t)

	at := time.Now().Add(-time.Hour)
	if _, err := s.Schedule(domain.Notification{ID: "n1", Trigger: domain.At(at)}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	sender.waitFor(t, 1, time.Second)
}

func TestRepeatingIntervalRefires(t *testing.T) {
	s, sender := newTestScheduler(t)

	// cron.Every rounds sub-second intervals up to one second.
	id, err := s.Schedule(domain.Notification{ID: "n1", Trigger: domain.After(time.Second, true)})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	sender.waitFor(t, 2, 5*time.Second)

	s.Cancel(id)
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after cancel, want 0", s.Pending())
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	s, sender := newTestScheduler(t)

	id, err := s.Schedule(domain.Notification{ID: "n1", Trigger: domain.After(100*time.Millisecond, false)})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if !s.Cancel(id) {
		t.Fatal("Cancel() = false for pending entry")
	}
	if s.Cancel(id) {
		t.Fatal("Cancel() = true for already-cancelled entry")
	}

	time.Sleep(200 * time.Millisecond)
	if sender.count() != 0 {
		t.Fatalf("cancelled notification was delivered %d times", sender.count())
	}
}

func TestCancelAll(t *testing.T) {
	s, sender := newTestScheduler(t)

	for i := 0; i < 3; i++ {
		if _, err := s.Schedule(domain.Notification{Trigger: domain.After(time.Minute, false)}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}
	if _, err := s.Schedule(domain.Notification{Trigger: domain.After(time.Minute, true)}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	s.CancelAll()
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after CancelAll, want 0", s.Pending())
	}

	time.Sleep(50 * time.Millisecond)
	if sender.count() != 0 {
		t.Fatalf("delivery after CancelAll: %d", sender.count())
	}
}

func TestScheduleCronRejectsBadSpec(t *testing.T) {
	s, _ := newTestScheduler(t)

	if _, err := s.ScheduleCron("not a cron spec", domain.Notification{}); err == nil {
		t.Fatal("ScheduleCron() accepted an invalid expression")
	}
}

func TestScheduleCronRegistersEntry(t *testing.T) {
	s, _ := newTestScheduler(t)

	id, err := s.ScheduleCron("30 7 * * *", domain.Notification{ID: "n1"})
	if err != nil {
		t.Fatalf("ScheduleCron() error = %v", err)
	}
	if id == 0 {
		t.Fatal("ScheduleCron() returned zero id")
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", s.Pending())
	}
}

func TestInvalidTriggerOffset(t *testing.T) {
	s, _ := newTestScheduler(t)

	if _, err := s.Schedule(domain.Notification{Trigger: domain.After(0, true)}); err == nil {
		t.Fatal("Schedule() accepted a zero offset")
	}
}

func TestUniqueIDsUnderConcurrency(t *testing.T) {
	s, _ := newTestScheduler(t)

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Schedule(domain.Notification{Trigger: domain.After(time.Minute, false)})
			if err != nil {
				t.Errorf("Schedule() error = %v", err)
				return
			}
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate entry id %d", id)
		}
		seen[id] = true
	}
}
