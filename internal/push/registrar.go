package push

import (
	"context"
	"log"
	"sync"

	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/platform"
)

// TokenSource exchanges a device id for a push token. Implemented by
// the push gateway client.
type TokenSource interface {
	RegisterDevice(ctx context.Context, deviceID, platformName string) (string, error)
}

// Registrar obtains and caches the push token for this install. It
// only proceeds on a physical platform with permission granted, and
// configures the delivery channel before requesting the token. Every
// failure is logged and leaves the token unset; nothing propagates to
// the caller, local scheduling must keep working without a token.
type Registrar struct {
	platform platform.Platform
	tokens   TokenSource
	deviceID string

	mu    sync.Mutex
	token string
}

func NewRegistrar(p platform.Platform, tokens TokenSource, deviceID string) *Registrar {
	return &Registrar{
		platform: p,
		tokens:   tokens,
		deviceID: deviceID,
	}
}

// RegisterDevice returns the push token, or an empty string when
// registration is impossible. Idempotent: a second call returns the
// cached token without touching the gateway.
func (r *Registrar) RegisterDevice(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" {
		return r.token
	}

	if !r.platform.IsPhysical() {
		log.Printf("Push registration skipped: %s is not a physical device", r.platform.Name())
		return ""
	}

	status, err := r.platform.RequestPermission(ctx)
	if err != nil {
		log.Printf("Error requesting notification permission: %v", err)
		return ""
	}
	if status != domain.PermissionGranted {
		log.Printf("Push registration skipped: permission %s", status)
		return ""
	}

	// The channel must exist before the token request on platforms
	// that route notifications through channels.
	if r.platform.SupportsChannels() {
		if err := r.platform.ConfigureChannel(platform.DefaultChannel()); err != nil {
			log.Printf("Error configuring delivery channel: %v", err)
			return ""
		}
	}

	token, err := r.tokens.RegisterDevice(ctx, r.deviceID, r.platform.Name())
	if err != nil {
		log.Printf("Error fetching push token: %v", err)
		return ""
	}

	r.token = token
	log.Printf("Push token registered for device %s", r.deviceID)
	return token
}

// Token returns the cached token, empty if registration never succeeded.
func (r *Registrar) Token() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.token
}

// Invalidate drops the cached token so the next RegisterDevice call
// hits the gateway again.
func (r *Registrar) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.token = ""
}
