package command

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mcdev12/focusguard/go/internal/models"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL + "/")
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestClient_SessionCommands(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("%s used %s", r.URL.Path, r.Method)
		}
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		respond(http.StatusOK, `{"success":true,"message":"ok"}`)(w, r)
	})

	ctx := context.Background()
	for _, call := range []func(context.Context) error{c.StopSession, c.PauseSession, c.ResumeSession, c.LockBox, c.UnlockBox} {
		if err := call(ctx); err != nil {
			t.Fatal(err)
		}
	}

	want := "/api/sessions/stop,/api/sessions/pause,/api/sessions/resume,/api/hardware/command/lock,/api/hardware/command/unlock"
	mu.Lock()
	defer mu.Unlock()
	if got := strings.Join(paths, ","); got != want {
		t.Fatalf("paths %s, want %s", got, want)
	}
}

func TestClient_FailuresShareOneErrorType(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		code    string
		message string
		logical bool
	}{
		{
			name:    "success false with 200",
			handler: respond(http.StatusOK, `{"success":false,"message":"nothing queued"}`),
			status:  http.StatusOK,
			message: "nothing queued",
			logical: true,
		},
		{
			name:    "error flag with 200",
			handler: respond(http.StatusOK, `{"error":true,"error_code":"NOT_ACTIVE","message":"no session"}`),
			status:  http.StatusOK,
			code:    "NOT_ACTIVE",
			message: "no session",
			logical: true,
		},
		{
			name:    "http 400 with detail",
			handler: respond(http.StatusBadRequest, `{"detail":"session is not paused"}`),
			status:  http.StatusBadRequest,
			message: "session is not paused",
		},
		{
			name:    "http 500 plain text",
			handler: respond(http.StatusInternalServerError, "boom"),
			status:  http.StatusInternalServerError,
			message: "boom",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestServer(t, tc.handler)
			err := c.ResumeSession(context.Background())

			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("got %T %v, want *RequestError", err, err)
			}
			if reqErr.Op != "resume session" || reqErr.Status != tc.status || reqErr.Code != tc.code || reqErr.Message != tc.message {
				t.Fatalf("unexpected error %+v", reqErr)
			}
			if got := errors.Is(err, ErrLogicalFailure); got != tc.logical {
				t.Fatalf("errors.Is(ErrLogicalFailure) = %v, want %v", got, tc.logical)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := NewClient(srv.URL)
	srv.Close()

	err := c.StopSession(context.Background())
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("got %T %v, want *RequestError", err, err)
	}
	if reqErr.Status != 0 || reqErr.Err == nil {
		t.Fatalf("unexpected error %+v", reqErr)
	}
}

func TestClient_Execute(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/penalty/execute" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		respond(http.StatusOK, `{"success":true,"message":"done","platforms_executed":2}`)(w, r)
	})

	res, err := c.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.PlatformsExecuted != 2 || !res.Success {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestClient_Execute_NothingConfigured(t *testing.T) {
	c := newTestServer(t, respond(http.StatusOK, `{"success":false,"message":"no platform enabled","platforms_executed":0}`))

	if err := c.ExecutePenalty(context.Background()); !errors.Is(err, ErrLogicalFailure) {
		t.Fatalf("got %v, want logical failure", err)
	}
}

func TestClient_FetchHardwareStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/hardware/status" || r.Method != http.MethodGet {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		respond(http.StatusOK, `{"success":true,"data":{"connected":true,"mock_mode":true,"mock_state":{"phone_inserted":true,"noise_min":40,"noise_max":50},"hardware_state":"IDLE","firmware_version":"1.0.3"}}`)(w, r)
	})

	status, err := c.FetchHardwareStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !status.Connected || !status.MockMode || status.MockState == nil || !status.MockState.PhoneInserted {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.HardwareState != models.HardwareStateIdle || status.FirmwareVersion != "1.0.3" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestClient_FetchCredentials(t *testing.T) {
	c := newTestServer(t, respond(http.StatusOK, `{"success":true,"data":{"discord":true,"threads":false,"gmail":true}}`))

	creds, err := c.FetchCredentials(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !creds[models.PlatformDiscord] || creds[models.PlatformThreads] || !creds[models.PlatformGmail] {
		t.Fatalf("unexpected credentials %v", creds)
	}
}

func TestClient_MockOverrides(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing json content type on %s", r.URL.Path)
		}
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, r.URL.Path+" "+string(b))
		mu.Unlock()
		respond(http.StatusOK, `{"success":true,"data":{"phone_inserted":true,"person_present":false,"noise_min":30,"noise_max":35}}`)(w, r)
	})

	lo, hi := 30, 35
	state, err := c.PushManualSensors(context.Background(), models.MockSensorOverride{PhoneInserted: true, NoiseMin: &lo, NoiseMax: &hi})
	if err != nil {
		t.Fatal(err)
	}
	if !state.PhoneInserted || state.NoiseMax != 35 {
		t.Fatalf("unexpected state %+v", state)
	}

	locked := true
	if _, err := c.PatchMockState(context.Background(), models.MockStatePatch{BoxLocked: &locked}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{
		`/api/hardware/mock/manual {"phone_inserted":true,"person_present":false,"nfc_valid":false,"box_open":false,"noise_min":30,"noise_max":35}`,
		`/api/hardware/mock/state {"box_locked":true}`,
	}
	if strings.Join(bodies, "\n") != strings.Join(want, "\n") {
		t.Fatalf("bodies:\n%s\nwant:\n%s", strings.Join(bodies, "\n"), strings.Join(want, "\n"))
	}
}
