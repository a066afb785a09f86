package command

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/focusguard/go/internal/models"
)

type toggleHarness struct {
	clock  *clockwork.FakeClock
	toggle *MockToggle

	mu    sync.Mutex
	sent  []bool
	fails error
}

func newToggleHarness() *toggleHarness {
	h := &toggleHarness{clock: clockwork.NewFakeClock()}
	h.toggle = NewMockToggle(h.clock, func(enabled bool) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, enabled)
		return h.fails
	}, DefaultConfirmTimeout)
	return h
}

func waitState(t *testing.T, m *MockToggle, want ToggleState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for m.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state %+v, want %+v", m.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestMockToggle_ConfirmedByPush(t *testing.T) {
	h := newToggleHarness()

	if err := h.toggle.Request(true); err != nil {
		t.Fatal(err)
	}
	if got := h.toggle.State(); got != (ToggleState{Enabled: true, Loading: true}) {
		t.Fatalf("optimistic state %+v", got)
	}

	// A push from before the server processed the toggle does not end the wait.
	h.toggle.Confirm(models.HardwareStatus{MockMode: false})
	if got := h.toggle.State(); !got.Loading || !got.Enabled {
		t.Fatalf("stale push changed state to %+v", got)
	}

	h.toggle.Confirm(models.HardwareStatus{MockMode: true})
	if got := h.toggle.State(); got != (ToggleState{Enabled: true}) {
		t.Fatalf("confirmed state %+v", got)
	}

	// The timer was cancelled by the confirmation.
	h.clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	if got := h.toggle.State(); got != (ToggleState{Enabled: true}) {
		t.Fatalf("state after timeout window %+v", got)
	}
}

func TestMockToggle_RevertsAfterTimeout(t *testing.T) {
	h := newToggleHarness()

	var states []ToggleState
	var mu sync.Mutex
	h.toggle.Subscribe(func(s ToggleState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	if err := h.toggle.Request(true); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(DefaultConfirmTimeout - time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if !h.toggle.State().Loading {
		t.Fatal("reverted before timeout")
	}

	h.clock.Advance(time.Millisecond)
	waitState(t, h.toggle, ToggleState{Enabled: false})

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || !states[0].Loading || states[1].Loading {
		t.Fatalf("published states %+v", states)
	}
}

func TestMockToggle_SendFailureRevertsImmediately(t *testing.T) {
	h := newToggleHarness()
	h.toggle.Confirm(models.HardwareStatus{MockMode: true})
	h.fails = errors.New("not connected")

	if err := h.toggle.Request(false); err == nil {
		t.Fatal("expected send error")
	}
	if got := h.toggle.State(); got != (ToggleState{Enabled: true}) {
		t.Fatalf("state after failed send %+v", got)
	}
}

func TestMockToggle_LatestRequestWins(t *testing.T) {
	h := newToggleHarness()

	_ = h.toggle.Request(true)
	h.clock.Advance(3 * time.Second)
	_ = h.toggle.Request(false)

	// The first request's deadline passes without touching the second one.
	h.clock.Advance(3 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := h.toggle.State(); got != (ToggleState{Enabled: false, Loading: true}) {
		t.Fatalf("state %+v", got)
	}

	h.toggle.Confirm(models.HardwareStatus{MockMode: false})
	if got := h.toggle.State(); got != (ToggleState{Enabled: false}) {
		t.Fatalf("state %+v", got)
	}
}
