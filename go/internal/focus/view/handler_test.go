package view

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/focusguard/go/internal/focus"
	"github.com/mcdev12/focusguard/go/internal/focus/command"
	"github.com/mcdev12/focusguard/go/internal/focus/gateway"
	"github.com/mcdev12/focusguard/go/internal/models"
)

type fakeState struct {
	mu   sync.Mutex
	view focus.View
}

func (f *fakeState) View() focus.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

func (f *fakeState) set(v focus.View) {
	f.mu.Lock()
	f.view = v
	f.mu.Unlock()
}

type fakeControl struct {
	mu       sync.Mutex
	calls    []string
	duration int
	settings models.PenaltySettings
	err      error
}

func (f *fakeControl) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeControl) StartSession(durationMinutes int) error {
	f.mu.Lock()
	f.duration = durationMinutes
	f.mu.Unlock()
	return f.record("start")
}
func (f *fakeControl) StopSession(ctx context.Context) error   { return f.record("stop") }
func (f *fakeControl) PauseSession(ctx context.Context) error  { return f.record("pause") }
func (f *fakeControl) ResumeSession(ctx context.Context) error { return f.record("resume") }
func (f *fakeControl) ToggleMock(enabled bool) error           { return f.record("toggle") }
func (f *fakeControl) UpdatePenaltySettings(settings models.PenaltySettings) error {
	f.mu.Lock()
	f.settings = settings
	f.mu.Unlock()
	return f.record("settings")
}
func (f *fakeControl) UpdatePenaltyConfig(cfg models.PenaltyConfig) error {
	return f.record("config")
}
func (f *fakeControl) PushManualSensors(ctx context.Context, override models.MockSensorOverride) (models.MockState, error) {
	return models.MockState{PhoneInserted: override.PhoneInserted, ManualMode: true}, f.record("sensors")
}
func (f *fakeControl) PatchMockState(ctx context.Context, patch models.MockStatePatch) (models.MockState, error) {
	return models.MockState{}, f.record("mock_state")
}
func (f *fakeControl) LockBox(ctx context.Context) error            { return f.record("lock") }
func (f *fakeControl) UnlockBox(ctx context.Context) error          { return f.record("unlock") }
func (f *fakeControl) RefreshCredentials(ctx context.Context) error { return f.record("credentials") }

func (f *fakeControl) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func newTestServer(t *testing.T, state *fakeState, control *fakeControl, b *Broadcaster) *httptest.Server {
	t.Helper()
	srv := NewServer(":0", nil, NewHandler(state, control, b))
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s response: %v", path, err)
	}
	return resp, out
}

func TestViewEndpoint(t *testing.T) {
	state := &fakeState{view: focus.View{
		Connected: true,
		State:     &models.SystemState{TodayViolationCount: 2},
	}}
	ts := newTestServer(t, state, &fakeControl{}, nil)

	resp, err := http.Get(ts.URL + "/api/view")
	if err != nil {
		t.Fatalf("GET /api/view: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var got focus.View
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Connected || got.State == nil || got.State.TodayViolationCount != 2 {
		t.Fatalf("view = %+v", got)
	}
}

func TestHealthReflectsConnection(t *testing.T) {
	state := &fakeState{}
	ts := newTestServer(t, state, &fakeControl{}, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("disconnected status = %d, want 503", resp.StatusCode)
	}

	state.set(focus.View{Connected: true})
	resp, err = http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("connected status = %d, want 200", resp.StatusCode)
	}
}

func TestHealthReportsComponentStats(t *testing.T) {
	state := &fakeState{view: focus.View{Connected: true}}
	handler := NewHandler(state, &fakeControl{}, nil).
		WithStats("connection", func() map[string]interface{} {
			return map[string]interface{}{"connects": 3, "sid": "sio-1"}
		}).
		WithStats("tap", func() map[string]interface{} {
			return map[string]interface{}{"published": 7, "dropped": 1}
		})
	ts := httptest.NewServer(NewServer(":0", nil, handler).Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status     string                            `json:"status"`
		Components map[string]map[string]interface{} `json:"components"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q", body.Status)
	}
	if got := body.Components["connection"]["sid"]; got != "sio-1" {
		t.Errorf("connection sid = %v", got)
	}
	if got := body.Components["tap"]["published"]; got != float64(7) {
		t.Errorf("tap published = %v", got)
	}
}

func TestStartSessionValidation(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, &fakeState{}, control, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
		{name: "zero duration", body: `{"duration_minutes":0}`, status: http.StatusBadRequest},
		{name: "valid", body: `{"duration_minutes":25}`, status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := post(t, ts, http.MethodPost, "/api/session/start", tt.body)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	if control.duration != 25 {
		t.Fatalf("duration = %d, want 25", control.duration)
	}
}

func TestCommandRoutes(t *testing.T) {
	control := &fakeControl{}
	ts := newTestServer(t, &fakeState{}, control, nil)

	tests := []struct {
		method string
		path   string
		body   string
		call   string
	}{
		{http.MethodPost, "/api/session/stop", "", "stop"},
		{http.MethodPost, "/api/session/pause", "", "pause"},
		{http.MethodPost, "/api/session/resume", "", "resume"},
		{http.MethodPost, "/api/mock/toggle", `{"enabled":true}`, "toggle"},
		{http.MethodPost, "/api/mock/sensors", `{"phone_inserted":true}`, "sensors"},
		{http.MethodPost, "/api/mock/state", `{"box_locked":true}`, "mock_state"},
		{http.MethodPut, "/api/penalty/settings", `{"enabled_platforms":["discord"]}`, "settings"},
		{http.MethodPut, "/api/penalty/config", `{"noise_threshold_db":70}`, "config"},
		{http.MethodPost, "/api/box/lock", "", "lock"},
		{http.MethodPost, "/api/box/unlock", "", "unlock"},
		{http.MethodPost, "/api/credentials/refresh", "", "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := post(t, ts, tt.method, tt.path, tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body %v", resp.StatusCode, body)
			}
			if body["success"] != true {
				t.Fatalf("body = %v", body)
			}
			if got := control.lastCall(); got != tt.call {
				t.Fatalf("call = %q, want %q", got, tt.call)
			}
		})
	}

	if len(control.settings.EnabledPlatforms) != 1 || control.settings.EnabledPlatforms[0] != models.PlatformDiscord {
		t.Fatalf("settings = %+v", control.settings)
	}
}

func TestCommandErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "not connected",
			err:     gateway.ErrNotConnected,
			status:  http.StatusServiceUnavailable,
			message: gateway.ErrNotConnected.Error(),
		},
		{
			name:    "backend refused",
			err:     &command.RequestError{Op: "stop session", Status: 400, Message: "No active session"},
			status:  http.StatusBadGateway,
			message: "No active session",
		},
		{
			name:    "unexpected",
			err:     errors.New("boom"),
			status:  http.StatusInternalServerError,
			message: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeState{}, &fakeControl{err: tt.err}, nil)
			resp, body := post(t, ts, http.MethodPost, "/api/session/stop", "")
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if body["error"] != tt.message {
				t.Fatalf("error = %v, want %q", body["error"], tt.message)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &fakeState{}, &fakeControl{}, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/session/stop", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestBroadcasterStreamsViews(t *testing.T) {
	state := &fakeState{view: focus.View{Connected: true}}
	b := NewBroadcaster(state, clockwork.NewFakeClock(), DefaultStreamConfig())
	ts := newTestServer(t, state, &fakeControl{}, b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() focus.View {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var v focus.View
		if err := conn.ReadJSON(&v); err != nil {
			t.Fatalf("read view: %v", err)
		}
		return v
	}

	if v := read(); !v.Connected {
		t.Fatalf("initial view = %+v", v)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("watcher never registered")
		}
		time.Sleep(2 * time.Millisecond)
	}

	state.set(focus.View{Connected: true, LastError: "session already active"})
	b.Notify()
	if v := read(); v.LastError != "session already active" {
		t.Fatalf("pushed view = %+v", v)
	}
}

func TestBroadcasterPingsOnClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	state := &fakeState{view: focus.View{Connected: true}}
	b := NewBroadcaster(state, clock, DefaultStreamConfig())
	ts := newTestServer(t, state, &fakeControl{}, b)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Only the watcher's ping ticker waits on the clock; Run is not started.
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ping ticker never started: %v", err)
	}
	clock.Advance(DefaultStreamConfig().PingInterval)

	select {
	case <-pinged:
	case <-ctx.Done():
		t.Fatal("no ping after advancing the clock")
	}
}
