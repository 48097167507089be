package domain

import "time"

type ReminderKind string

const (
	KindContentPost        ReminderKind = "content_post"
	KindProductSync        ReminderKind = "product_sync"
	KindAnalyticsReview    ReminderKind = "analytics_review"
	KindFaithEncouragement ReminderKind = "faith_encouragement"
	KindCustom             ReminderKind = "custom"
)

type ReviewFrequency string

const (
	ReviewDaily   ReviewFrequency = "daily"
	ReviewWeekly  ReviewFrequency = "weekly"
	ReviewMonthly ReviewFrequency = "monthly"
)

// Interval maps a review frequency to its repeat interval.
func (f ReviewFrequency) Interval() (time.Duration, bool) {
	switch f {
	case ReviewDaily:
		return 86400 * time.Second, true
	case ReviewWeekly:
		return 604800 * time.Second, true
	case ReviewMonthly:
		return 2592000 * time.Second, true
	}
	return 0, false
}

// ScheduledReminder is the persisted domain record behind a scheduled
// notification. Its ID is domain-level and independent of the scheduler
// entry (OsID) used to deliver it. ScheduledFor is immutable after
// creation; rescheduling means creating a new reminder. IsActive is the
// only field updated in place.
type ScheduledReminder struct {
	ID           string
	Kind         ReminderKind
	Title        string
	Message      string
	ScheduledFor time.Time
	UserID       string
	IsActive     bool
	OsID         int64
	Metadata     map[string]string
	CreatedAt    time.Time
}
