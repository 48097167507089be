package platform

import (
	"context"

	"github.com/antufev/gracebot/internal/domain"
)

// Channel importance levels, mirroring the usual platform scale.
const (
	ImportanceLow     = 2
	ImportanceDefault = 3
	ImportanceHigh    = 4
)

// Channel describes a delivery channel that must exist before a push
// token can be requested on platforms that use channels.
type Channel struct {
	Name       string
	Importance int
	Vibration  []int64 // pattern in milliseconds
	Sound      string
}

func DefaultChannel() Channel {
	return Channel{
		Name:       "default",
		Importance: ImportanceHigh,
		Vibration:  []int64{0, 250, 250, 250},
		Sound:      "default",
	}
}

// ActionListener receives user interactions with delivered
// notifications: the action identifier plus an opaque payload.
type ActionListener func(actionID string, payload map[string]string)

// Platform abstracts one delivery target. Platform-specific behavior
// (channel setup, permission prompts) lives behind this interface
// instead of branching inside the scheduler.
type Platform interface {
	Name() string

	// IsPhysical reports whether this platform can receive remote
	// pushes. Push registration is skipped when false.
	IsPhysical() bool

	SupportsChannels() bool
	ConfigureChannel(ch Channel) error

	CheckPermission(ctx context.Context) (domain.PermissionStatus, error)
	// RequestPermission is idempotent: once the platform has resolved
	// the permission, calling it again changes nothing.
	RequestPermission(ctx context.Context) (domain.PermissionStatus, error)

	// Deliver sends a due notification to the user.
	Deliver(n domain.Notification) error

	// AttachActionListener wires user interactions back into the
	// engine. At most one listener is active.
	AttachActionListener(l ActionListener)
}
