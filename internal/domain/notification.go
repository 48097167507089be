package domain

import "time"

type TriggerKind int

const (
	TriggerImmediate TriggerKind = iota
	TriggerAt
	TriggerAfter
)

// Trigger determines when a notification fires: now, at an absolute
// device-local time, or after a relative offset (optionally repeating).
type Trigger struct {
	Kind    TriggerKind
	At      time.Time
	After   time.Duration
	Repeats bool
}

func Immediately() Trigger {
	return Trigger{Kind: TriggerImmediate}
}

func At(t time.Time) Trigger {
	return Trigger{Kind: TriggerAt, At: t}
}

func After(d time.Duration, repeats bool) Trigger {
	return Trigger{Kind: TriggerAfter, After: d, Repeats: repeats}
}

// Notification is an ephemeral delivery request. It is not persisted;
// ScheduledReminder carries the durable state.
type Notification struct {
	ID         string
	Title      string
	Body       string
	Data       map[string]string
	Trigger    Trigger
	CategoryID string
}

// Action is one interactive button on a delivered notification.
type Action struct {
	Identifier string
	Label      string
	OpensApp   bool
}

// Category groups the actions attachable to a notification.
type Category struct {
	ID      string
	Actions []Action
}

type PermissionStatus string

const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)
