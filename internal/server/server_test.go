package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/antufev/gracebot/internal/category"
	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/platform"
	"github.com/antufev/gracebot/internal/push"
	"github.com/antufev/gracebot/internal/router"
	"github.com/antufev/gracebot/internal/scheduler"
	"github.com/antufev/gracebot/internal/service"
	"github.com/antufev/gracebot/internal/storage"
)

type noopTokens struct{}

func (noopTokens) RegisterDevice(ctx context.Context, deviceID, platformName string) (string, error) {
	return "", fmt.Errorf("no gateway in tests")
}

// newTestServer wires a full engine on a headless platform.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "reminders.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pl := platform.NewHeadless()
	sched := scheduler.New(time.UTC, pl)
	sched.Start()
	t.Cleanup(sched.Stop)

	svc := service.NewNotificationService(
		store, sched, pl,
		push.NewRegistrar(pl, noopTokens{}, "test-device"),
		category.NewRegistry(), router.New(),
		15*time.Minute, time.UTC,
	)
	cal := service.NewCalendarService(store, nil, time.UTC)
	svc.SetCalendarService(cal)

	if err := svc.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	srv := httptest.NewServer(New(svc, cal, "0").routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["engine"] != string(service.StateReady) {
		t.Errorf("engine state = %q, want %q", body["engine"], service.StateReady)
	}
}

func TestScheduleAndListReminders(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/reminders/content", map[string]any{
		"title":    "Sunday Post",
		"when":     time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"platform": "instagram",
		"user_id":  "u1",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var created map[string]int64
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created["os_id"] == 0 {
		t.Fatal("os_id missing from response")
	}

	listResp, err := http.Get(srv.URL + "/api/v1/users/u1/reminders")
	if err != nil {
		t.Fatalf("GET reminders: %v", err)
	}
	defer listResp.Body.Close()

	var reminders []map[string]any
	if err := json.NewDecoder(listResp.Body).Decode(&reminders); err != nil {
		t.Fatalf("decode reminders: %v", err)
	}
	if len(reminders) != 1 {
		t.Fatalf("got %d reminders, want 1", len(reminders))
	}
	if reminders[0]["kind"] != string(domain.KindContentPost) {
		t.Errorf("kind = %v, want %s", reminders[0]["kind"], domain.KindContentPost)
	}
}

func TestScheduleContentValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/reminders/content", map[string]any{
		"title": "No user or time",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestScheduleAnalyticsRejectsUnknownFrequency(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/reminders/analytics", map[string]any{
		"user_id":   "u1",
		"frequency": "hourly",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCancelAllEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/reminders/faith", map[string]any{
		"user_id": "u1",
		"time":    time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/notifications", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE notifications: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", delResp.StatusCode)
	}

	listResp, err := http.Get(srv.URL + "/api/v1/users/u1/reminders")
	if err != nil {
		t.Fatalf("GET reminders: %v", err)
	}
	defer listResp.Body.Close()

	var reminders []map[string]any
	json.NewDecoder(listResp.Body).Decode(&reminders)
	if len(reminders) != 0 {
		t.Fatalf("reminders after cancel-all: %d", len(reminders))
	}
}

func TestPushTokenEmptyOnHeadless(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/push/token")
	if err != nil {
		t.Fatalf("GET push token: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["set"] != false {
		t.Errorf("token set = %v on headless platform, want false", body["set"])
	}
}

func TestSendPushWithoutGateway(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/push/send", map[string]any{
		"title": "Ping",
		"body":  "Hello",
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 with no gateway configured", resp.StatusCode)
	}
}

func TestPermissionsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/permissions")
	if err != nil {
		t.Fatalf("GET permissions: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != string(domain.PermissionGranted) {
		t.Errorf("status = %q, want granted on headless", body["status"])
	}
}

func TestExportCalendarEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/v1/reminders/content", map[string]any{
		"title":    "Sunday Post",
		"when":     time.Now().Add(2 * time.Hour).Format(time.RFC3339),
		"platform": "instagram",
		"user_id":  "u1",
	})
	resp.Body.Close()

	icsResp, err := http.Get(srv.URL + "/api/v1/users/u1/calendar.ics")
	if err != nil {
		t.Fatalf("GET calendar: %v", err)
	}
	defer icsResp.Body.Close()

	if icsResp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", icsResp.StatusCode)
	}
	if ct := icsResp.Header.Get("Content-Type"); ct != "text/calendar; charset=utf-8" {
		t.Errorf("content type = %q", ct)
	}
}

func TestToggleUnknownReminder(t *testing.T) {
	srv := newTestServer(t)

	data, _ := json.Marshal(map[string]bool{"is_active": false})
	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/v1/reminders/missing", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH reminder: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
