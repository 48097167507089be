package platform

import (
	"context"
	"log"

	"github.com/antufev/gracebot/internal/domain"
)

// Headless is the delivery platform used when no bot token is
// configured: a virtual device. Local scheduling works, notifications
// go to the log, and push registration is skipped because the device
// is not physical.
type Headless struct{}

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) Name() string { return "headless" }

func (h *Headless) IsPhysical() bool { return false }

func (h *Headless) SupportsChannels() bool { return false }

func (h *Headless) ConfigureChannel(ch Channel) error { return nil }

func (h *Headless) CheckPermission(ctx context.Context) (domain.PermissionStatus, error) {
	return domain.PermissionGranted, nil
}

func (h *Headless) RequestPermission(ctx context.Context) (domain.PermissionStatus, error) {
	return domain.PermissionGranted, nil
}

func (h *Headless) Deliver(n domain.Notification) error {
	log.Printf("Notification: %s: %s", n.Title, n.Body)
	return nil
}

func (h *Headless) AttachActionListener(l ActionListener) {}
