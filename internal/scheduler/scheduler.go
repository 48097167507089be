package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/antufev/gracebot/internal/domain"
)

// Sender delivers a due notification to the user. Implemented by the
// delivery platform.
type Sender interface {
	Deliver(n domain.Notification) error
}

// entry tracks one scheduled notification so it can be cancelled. A
// pending one-shot holds a timer; a repeating entry holds a cron id.
type entry struct {
	timer  *time.Timer
	cronID cron.EntryID
	isCron bool
}

// Scheduler resolves notification triggers into timers and cron
// entries and hands due notifications to the Sender. Entry ids are
// opaque to callers; reminders keep their own domain-level ids.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	sender  Sender
	nextID  int64
	entries map[int64]entry
	loc     *time.Location
}

func New(loc *time.Location, sender Sender) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sender:  sender,
		entries: make(map[int64]entry),
		loc:     loc,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.CancelAll()
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// Schedule resolves the notification's trigger and returns the entry id.
// Immediate fires now. An absolute time in the past is not validated
// and fires immediately. A repeating relative trigger re-fires at the
// same offset until cancelled.
func (s *Scheduler) Schedule(n domain.Notification) (int64, error) {
	switch n.Trigger.Kind {
	case domain.TriggerImmediate:
		id := s.register(entry{})
		go s.fire(id, n, false)
		return id, nil

	case domain.TriggerAt:
		d := time.Until(n.Trigger.At)
		if d < 0 {
			d = 0
		}
		return s.scheduleTimer(d, n), nil

	case domain.TriggerAfter:
		if n.Trigger.After <= 0 {
			return 0, fmt.Errorf("trigger offset must be positive, got %v", n.Trigger.After)
		}
		if !n.Trigger.Repeats {
			return s.scheduleTimer(n.Trigger.After, n), nil
		}
		return s.scheduleRepeating(cron.Every(n.Trigger.After), n), nil

	default:
		return 0, fmt.Errorf("unknown trigger kind %d", n.Trigger.Kind)
	}
}

// ScheduleCron registers a repeating notification from a standard
// five-field cron expression, for wall-clock repeats like "every day
// at 07:30". The expression is the only timing source; the
// notification's Trigger is not consulted.
func (s *Scheduler) ScheduleCron(spec string, n domain.Notification) (int64, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(spec)
	if err != nil {
		return 0, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s.scheduleRepeating(sched, n), nil
}

func (s *Scheduler) scheduleTimer(d time.Duration, n domain.Notification) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	timer := time.AfterFunc(d, func() { s.fire(id, n, false) })
	s.entries[id] = entry{timer: timer}
	return id
}

func (s *Scheduler) scheduleRepeating(sched cron.Schedule, n domain.Notification) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	cronID := s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(id, n, true) }))
	s.entries[id] = entry{cronID: cronID, isCron: true}
	return id
}

func (s *Scheduler) register(e entry) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries[s.nextID] = e
	return s.nextID
}

func (s *Scheduler) fire(id int64, n domain.Notification, repeats bool) {
	if !repeats {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
	}

	if s.sender == nil {
		return
	}
	if err := s.sender.Deliver(n); err != nil {
		log.Printf("Error delivering notification %s: %v", n.ID, err)
	}
}

// Cancel removes one scheduled entry. Fire-and-forget: the return
// value only says whether the entry was still pending.
func (s *Scheduler) Cancel(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false
	}
	s.remove(id, e)
	return true
}

func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		s.remove(id, e)
	}
}

// remove must be called with the mutex held.
func (s *Scheduler) remove(id int64, e entry) {
	if e.isCron {
		s.cron.Remove(e.cronID)
	} else if e.timer != nil {
		e.timer.Stop()
	}
	delete(s.entries, id)
}

// Pending returns the number of live entries.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
