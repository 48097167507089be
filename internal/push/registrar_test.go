package push

import (
	"context"
	"errors"
	"testing"

	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/platform"
)

// fakePlatform records the order of capability calls.
type fakePlatform struct {
	physical   bool
	channels   bool
	permission domain.PermissionStatus
	channelErr error
	calls      []string
}

func (f *fakePlatform) Name() string { return "fake" }
func (f *fakePlatform) IsPhysical() bool { return f.physical }
func (f *fakePlatform) SupportsChannels() bool { return f.channels }

func (f *fakePlatform) ConfigureChannel(ch platform.Channel) error {
	f.calls = append(f.calls, "configure_channel")
	return f.channelErr
}

func (f *fakePlatform) CheckPermission(ctx context.Context) (domain.PermissionStatus, error) {
	return f.permission, nil
}

func (f *fakePlatform) RequestPermission(ctx context.Context) (domain.PermissionStatus, error) {
	f.calls = append(f.calls, "request_permission")
	return f.permission, nil
}

func (f *fakePlatform) Deliver(n domain.Notification) error { return nil }
func (f *fakePlatform) AttachActionListener(l platform.ActionListener) {}

type fakeTokens struct {
	token string
	err   error
	calls *[]string
	count int
}

func (f *fakeTokens) RegisterDevice(ctx context.Context, deviceID, platformName string) (string, error) {
	if f.calls != nil {
		*f.calls = append(*f.calls, "fetch_token")
	}
	f.count++
	return f.token, f.err
}

func TestRegisterDevice(t *testing.T) {
	pl := &fakePlatform{physical: true, channels: true, permission: domain.PermissionGranted}
	tokens := &fakeTokens{token: "tok-1", calls: &pl.calls}
	r := NewRegistrar(pl, tokens, "dev-1")

	got := r.RegisterDevice(context.Background())
	if got != "tok-1" {
		t.Fatalf("RegisterDevice() = %q, want %q", got, "tok-1")
	}
	if r.Token() != "tok-1" {
		t.Errorf("Token() = %q, want %q", r.Token(), "tok-1")
	}

	// Channel configuration must precede the token fetch.
	want := []string{"request_permission", "configure_channel", "fetch_token"}
	if len(pl.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", pl.calls, want)
	}
	for i := range want {
		if pl.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", pl.calls, want)
		}
	}
}

func TestRegisterDeviceCachesToken(t *testing.T) {
	pl := &fakePlatform{physical: true, channels: false, permission: domain.PermissionGranted}
	tokens := &fakeTokens{token: "tok-1"}
	r := NewRegistrar(pl, tokens, "dev-1")

	r.RegisterDevice(context.Background())
	r.RegisterDevice(context.Background())

	if tokens.count != 1 {
		t.Fatalf("gateway hit %d times, want 1", tokens.count)
	}
}

func TestRegisterDeviceSkippedOnVirtualDevice(t *testing.T) {
	pl := &fakePlatform{physical: false, permission: domain.PermissionGranted}
	tokens := &fakeTokens{token: "tok-1"}
	r := NewRegistrar(pl, tokens, "dev-1")

	if got := r.RegisterDevice(context.Background()); got != "" {
		t.Fatalf("RegisterDevice() = %q on virtual device, want empty", got)
	}
	if tokens.count != 0 {
		t.Fatal("gateway was hit for a virtual device")
	}
}

func TestRegisterDeviceSkippedWhenDenied(t *testing.T) {
	pl := &fakePlatform{physical: true, permission: domain.PermissionDenied}
	tokens := &fakeTokens{token: "tok-1"}
	r := NewRegistrar(pl, tokens, "dev-1")

	if got := r.RegisterDevice(context.Background()); got != "" {
		t.Fatalf("RegisterDevice() = %q with denied permission, want empty", got)
	}
	if r.Token() != "" {
		t.Errorf("Token() = %q, want empty", r.Token())
	}
}

func TestRegisterDeviceTokenFetchFailure(t *testing.T) {
	pl := &fakePlatform{physical: true, permission: domain.PermissionGranted}
	tokens := &fakeTokens{err: errors.New("network down")}
	r := NewRegistrar(pl, tokens, "dev-1")

	if got := r.RegisterDevice(context.Background()); got != "" {
		t.Fatalf("RegisterDevice() = %q after fetch failure, want empty", got)
	}

	// A later call retries.
	tokens.err = nil
	tokens.token = "tok-2"
	if got := r.RegisterDevice(context.Background()); got != "tok-2" {
		t.Fatalf("retry RegisterDevice() = %q, want %q", got, "tok-2")
	}
}

func TestInvalidate(t *testing.T) {
	pl := &fakePlatform{physical: true, permission: domain.PermissionGranted}
	tokens := &fakeTokens{token: "tok-1"}
	r := NewRegistrar(pl, tokens, "dev-1")

	r.RegisterDevice(context.Background())
	r.Invalidate()

	if r.Token() != "" {
		t.Fatal("token still cached after Invalidate")
	}
	r.RegisterDevice(context.Background())
	if tokens.count != 2 {
		t.Fatalf("gateway hit %d times, want 2 after invalidation", tokens.count)
	}
}
