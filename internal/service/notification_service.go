package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antufev/gracebot/internal/category"
	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/platform"
	"github.com/antufev/gracebot/internal/push"
	"github.com/antufev/gracebot/internal/router"
	"github.com/antufev/gracebot/internal/storage"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	// StateDegraded means init finished but a non-fatal step failed,
	// push registration most likely. Local scheduling still works and
	// the next Init call retries the failed steps.
	StateDegraded State = "degraded"
)

// Built-in category and action identifiers.
const (
	CategoryContentReminder    = "content_reminder"
	CategoryFaithEncouragement = "faith_encouragement"
	CategoryAnalyticsReview    = "analytics_review"

	ActionViewPost      = "view_post"
	ActionSnoozePost    = "snooze_post"
	ActionAmen          = "amen"
	ActionOpenAnalytics = "open_analytics"
)

var ErrUnknownFrequency = errors.New("unknown review frequency")

// Scheduler is the slice of the scheduler the facade needs.
type Scheduler interface {
	Schedule(n domain.Notification) (int64, error)
	ScheduleCron(spec string, n domain.Notification) (int64, error)
	Cancel(id int64) bool
	CancelAll()
}

// PushSender delivers a server-initiated push through the remote
// gateway. Implemented by the push gateway client.
type PushSender interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) bool
}

// NotificationService is the engine facade. It owns the init sequence
// and composes the scheduler with the reminder store for the domain
// operations. Constructed explicitly and passed to consumers; there is
// no package-level instance.
type NotificationService struct {
	store      *storage.Storage
	sched      Scheduler
	platform   platform.Platform
	registrar  *push.Registrar
	categories *category.Registry
	actions    *router.Router
	calendar   *CalendarService
	pusher     PushSender
	lead       time.Duration
	tz         *time.Location

	mu    sync.Mutex
	state State
}

func NewNotificationService(
	store *storage.Storage,
	sched Scheduler,
	pl platform.Platform,
	registrar *push.Registrar,
	categories *category.Registry,
	actions *router.Router,
	lead time.Duration,
	tz *time.Location,
) *NotificationService {
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	if tz == nil {
		tz = time.UTC
	}
	return &NotificationService{
		store:      store,
		sched:      sched,
		platform:   pl,
		registrar:  registrar,
		categories: categories,
		actions:    actions,
		lead:       lead,
		tz:         tz,
		state:      StateUninitialized,
	}
}

// SetCalendarService enables best-effort calendar publishing of new
// reminders.
func (s *NotificationService) SetCalendarService(c *CalendarService) {
	s.calendar = c
}

// SetPushClient enables server-initiated pushes through the gateway.
func (s *NotificationService) SetPushClient(p PushSender) {
	s.pusher = p
}

func (s *NotificationService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Init runs the engine's init sequence: push registration, built-in
// categories, store load and re-arm, action listener attach. Each step
// failure is non-fatal; the engine favors coming up degraded over not
// coming up. Idempotent once Ready; a Degraded engine retries on the
// next call.
func (s *NotificationService) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateReady || s.state == StateInitializing {
		s.mu.Unlock()
		return nil
	}
	s.state = StateInitializing
	s.mu.Unlock()

	degraded := false

	if s.platform.IsPhysical() {
		if token := s.registrar.RegisterDevice(ctx); token == "" {
			degraded = true
		}
	}

	s.registerBuiltinCategories()

	reminders, err := s.store.LoadAll()
	if err != nil {
		// Unreadable persistence means no prior reminders, never a
		// failed startup.
		log.Printf("Error loading reminders, starting empty: %v", err)
		reminders = nil
	}
	s.rearm(reminders)

	s.platform.AttachActionListener(func(actionID string, payload map[string]string) {
		s.actions.Dispatch(actionID, payload)
	})

	s.mu.Lock()
	if degraded {
		s.state = StateDegraded
	} else {
		s.state = StateReady
	}
	s.mu.Unlock()

	log.Printf("Notification engine %s (platform: %s)", s.State(), s.platform.Name())
	return nil
}

func (s *NotificationService) registerBuiltinCategories() {
	s.categories.Register(domain.Category{
		ID: CategoryContentReminder,
		Actions: []domain.Action{
			{Identifier: ActionViewPost, Label: "📝 Open draft", OpensApp: true},
			{Identifier: ActionSnoozePost, Label: "💤 Snooze 15 min"},
		},
	})
	s.categories.Register(domain.Category{
		ID: CategoryFaithEncouragement,
		Actions: []domain.Action{
			{Identifier: ActionAmen, Label: "🙏 Amen"},
		},
	})
	s.categories.Register(domain.Category{
		ID: CategoryAnalyticsReview,
		Actions: []domain.Action{
			{Identifier: ActionOpenAnalytics, Label: "📊 Open analytics", OpensApp: true},
		},
	})
}

// rearm rebuilds scheduler entries for persisted active reminders.
// Scheduler entries do not survive a restart, reminders do. Each kind
// gets the same trigger a fresh schedule would: content reminders keep
// their lead interval, repeating kinds keep repeating and are re-armed
// even when their reference time has passed.
func (s *NotificationService) rearm(reminders []*domain.ScheduledReminder) {
	now := time.Now()
	for _, r := range reminders {
		if !r.IsActive {
			continue
		}

		n := domain.Notification{
			ID:         r.ID,
			Title:      r.Title,
			Body:       r.Message,
			Data:       r.Metadata,
			CategoryID: categoryForKind(r.Kind),
		}

		var (
			osID int64
			err  error
		)
		switch r.Kind {
		case domain.KindFaithEncouragement:
			local := r.ScheduledFor.In(s.tz)
			spec := fmt.Sprintf("%d %d * * *", local.Minute(), local.Hour())
			osID, err = s.sched.ScheduleCron(spec, n)

		case domain.KindAnalyticsReview:
			interval, ok := domain.ReviewFrequency(r.Metadata["frequency"]).Interval()
			if !ok {
				log.Printf("Skipping reminder %s: unknown review frequency %q", r.ID, r.Metadata["frequency"])
				continue
			}
			n.Trigger = domain.After(interval, true)
			osID, err = s.sched.Schedule(n)

		case domain.KindContentPost:
			if !r.ScheduledFor.After(now) {
				continue
			}
			n.Trigger = domain.At(r.ScheduledFor.Add(-s.lead))
			osID, err = s.sched.Schedule(n)

		default:
			if !r.ScheduledFor.After(now) {
				continue
			}
			n.Trigger = domain.At(r.ScheduledFor)
			osID, err = s.sched.Schedule(n)
		}
		if err != nil {
			log.Printf("Error re-arming reminder %s: %v", r.ID, err)
			continue
		}
		if err := s.store.UpdateOsID(r.ID, osID); err != nil {
			log.Printf("Error rebinding reminder %s: %v", r.ID, err)
		}
	}
}

func categoryForKind(k domain.ReminderKind) string {
	switch k {
	case domain.KindContentPost:
		return CategoryContentReminder
	case domain.KindFaithEncouragement:
		return CategoryFaithEncouragement
	case domain.KindAnalyticsReview:
		return CategoryAnalyticsReview
	}
	return ""
}

// ScheduleContentReminder schedules a nudge ahead of a planned post.
// The notification fires a lead interval before the posting time; the
// reminder record keeps the posting time itself.
func (s *NotificationService) ScheduleContentReminder(title string, when time.Time, socialPlatform, userID string) (int64, error) {
	id := uuid.NewString()
	body := fmt.Sprintf("Your %s post goes out at %s. Time to get it ready!",
		socialPlatform, when.In(s.tz).Format("15:04"))

	osID, err := s.sched.Schedule(domain.Notification{
		ID:         id,
		Title:      title,
		Body:       body,
		CategoryID: CategoryContentReminder,
		Data:       map[string]string{"platform": socialPlatform},
		Trigger:    domain.At(when.Add(-s.lead)),
	})
	if err != nil {
		return 0, fmt.Errorf("schedule content reminder: %w", err)
	}

	s.persist(&domain.ScheduledReminder{
		ID:           id,
		Kind:         domain.KindContentPost,
		Title:        title,
		Message:      body,
		ScheduledFor: when,
		UserID:       userID,
		IsActive:     true,
		OsID:         osID,
		Metadata:     map[string]string{"platform": socialPlatform},
	})
	return osID, nil
}

// ScheduleFaithEncouragement delivers one randomly chosen encouragement
// every day at the wall-clock time of at.
func (s *NotificationService) ScheduleFaithEncouragement(userID string, at time.Time) (int64, error) {
	id := uuid.NewString()
	message := faithMessages[rand.Intn(len(faithMessages))]

	local := at.In(s.tz)
	spec := fmt.Sprintf("%d %d * * *", local.Minute(), local.Hour())

	osID, err := s.sched.ScheduleCron(spec, domain.Notification{
		ID:         id,
		Title:      "Daily Encouragement",
		Body:       message,
		CategoryID: CategoryFaithEncouragement,
	})
	if err != nil {
		return 0, fmt.Errorf("schedule faith encouragement: %w", err)
	}

	s.persist(&domain.ScheduledReminder{
		ID:           id,
		Kind:         domain.KindFaithEncouragement,
		Title:        "Daily Encouragement",
		Message:      message,
		ScheduledFor: at,
		UserID:       userID,
		IsActive:     true,
		OsID:         osID,
	})
	return osID, nil
}

// ScheduleAnalyticsReview sets up a repeating review nudge at the
// frequency's fixed interval.
func (s *NotificationService) ScheduleAnalyticsReview(userID string, frequency domain.ReviewFrequency) (int64, error) {
	interval, ok := frequency.Interval()
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownFrequency, frequency)
	}

	id := uuid.NewString()
	body := fmt.Sprintf("Your %s analytics review is ready. See how your content performed.", frequency)

	osID, err := s.sched.Schedule(domain.Notification{
		ID:         id,
		Title:      "Analytics Review",
		Body:       body,
		CategoryID: CategoryAnalyticsReview,
		Trigger:    domain.After(interval, true),
	})
	if err != nil {
		return 0, fmt.Errorf("schedule analytics review: %w", err)
	}

	s.persist(&domain.ScheduledReminder{
		ID:           id,
		Kind:         domain.KindAnalyticsReview,
		Title:        "Analytics Review",
		Message:      body,
		ScheduledFor: time.Now().Add(interval),
		UserID:       userID,
		IsActive:     true,
		OsID:         osID,
		Metadata:     map[string]string{"frequency": string(frequency)},
	})
	return osID, nil
}

// SendImmediate fires a one-off notification right away. Ephemeral:
// nothing is persisted.
func (s *NotificationService) SendImmediate(title, body string, data map[string]string) error {
	_, err := s.sched.Schedule(domain.Notification{
		ID:      uuid.NewString(),
		Title:   title,
		Body:    body,
		Data:    data,
		Trigger: domain.Immediately(),
	})
	if err != nil {
		return fmt.Errorf("send immediate: %w", err)
	}
	return nil
}

// persist appends the reminder and publishes it to the calendar.
// A write failure is logged, not returned: the notification is already
// scheduled and dropping it now would be worse than a stale store.
func (s *NotificationService) persist(r *domain.ScheduledReminder) {
	if err := s.store.Append(r); err != nil {
		log.Printf("Error persisting reminder %s: %v", r.ID, err)
		return
	}
	if s.calendar != nil {
		s.calendar.PublishReminder(r)
	}
}

// Cancel removes one scheduled entry and deactivates the reminder
// bound to it, keeping both planes in sync. The published calendar
// event goes with it.
func (s *NotificationService) Cancel(osID int64) {
	s.sched.Cancel(osID)
	id, err := s.store.DeactivateByOsID(osID)
	if err != nil {
		log.Printf("Error deactivating reminder for entry %d: %v", osID, err)
		return
	}
	if id != "" && s.calendar != nil {
		s.calendar.UnpublishReminder(id)
	}
}

// CancelAll drops every scheduled entry and empties the store.
func (s *NotificationService) CancelAll() {
	s.sched.CancelAll()
	if err := s.store.Clear(); err != nil {
		log.Printf("Error clearing reminder store: %v", err)
	}
}

func (s *NotificationService) GetUserReminders(userID string) ([]*domain.ScheduledReminder, error) {
	return s.store.ListByUser(userID)
}

// ToggleReminder flips a reminder's active flag and keeps the published
// calendar in step: deactivating removes the event, reactivating
// republishes it.
func (s *NotificationService) ToggleReminder(id string, active bool) error {
	if err := s.store.Toggle(id, active); err != nil {
		return err
	}
	if s.calendar == nil {
		return nil
	}
	if !active {
		s.calendar.UnpublishReminder(id)
		return nil
	}
	r, err := s.store.Get(id)
	if err != nil {
		log.Printf("Error reloading reminder %s: %v", id, err)
		return nil
	}
	s.calendar.PublishReminder(r)
	return nil
}

// SendPush delivers a notification through the remote push gateway to
// this device's registered token, independent of the local scheduler.
func (s *NotificationService) SendPush(ctx context.Context, title, body string, data map[string]string) error {
	if s.pusher == nil {
		return fmt.Errorf("push gateway not configured")
	}
	token := s.registrar.Token()
	if token == "" {
		return fmt.Errorf("no push token registered")
	}
	if !s.pusher.Send(ctx, token, title, body, data) {
		return fmt.Errorf("push gateway rejected notification")
	}
	return nil
}

// GetPushToken returns the cached push token, empty when push
// registration never succeeded.
func (s *NotificationService) GetPushToken() string {
	return s.registrar.Token()
}

func (s *NotificationService) CheckPermissions(ctx context.Context) (domain.PermissionStatus, error) {
	return s.platform.CheckPermission(ctx)
}

func (s *NotificationService) RequestPermissions(ctx context.Context) (domain.PermissionStatus, error) {
	return s.platform.RequestPermission(ctx)
}
