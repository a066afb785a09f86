package command

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/pubsub"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// DefaultConfirmTimeout bounds how long an optimistic toggle waits for its confirming push.
const DefaultConfirmTimeout = 5 * time.Second

// ToggleState is what a renderer shows for the simulated-hardware switch.
type ToggleState struct {
	Enabled bool `json:"enabled"` // optimistic value while Loading, confirmed value otherwise
	Loading bool `json:"loading"`
}

// MockToggle holds the optimistic simulated-hardware flag. It flips immediately on
// request and settles on the next hardware_status push that agrees with it, or
// reverts to the last confirmed value when the timeout passes first.
type MockToggle struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	timeout   time.Duration
	send      func(enabled bool) error
	hub       *pubsub.Hub[ToggleState]
	state     ToggleState
	confirmed bool
	timer     clockwork.Timer
	gen       uint64
}

// NewMockToggle creates a toggle that sends requests through send.
func NewMockToggle(clock clockwork.Clock, send func(enabled bool) error, timeout time.Duration) *MockToggle {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &MockToggle{
		clock:   clock,
		timeout: timeout,
		send:    send,
		hub:     pubsub.NewHub[ToggleState]("mock_toggle"),
	}
}

// Request flips the flag to enabled and sends the command. A send failure reverts at once.
func (m *MockToggle) Request(enabled bool) error {
	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.stopTimerLocked()
	m.state = ToggleState{Enabled: enabled, Loading: true}
	m.timer = m.clock.AfterFunc(m.timeout, func() { m.expire(gen) })
	state := m.state
	m.mu.Unlock()

	m.hub.Publish(state)

	if err := m.send(enabled); err != nil {
		m.revert(gen, "send failed")
		return err
	}
	return nil
}

// Confirm reconciles the flag with a hardware status push. A push that disagrees with
// a pending request is treated as stale and does not end the wait.
func (m *MockToggle) Confirm(status models.HardwareStatus) {
	m.mu.Lock()
	m.confirmed = status.MockMode
	if m.state.Loading && status.MockMode != m.state.Enabled {
		m.mu.Unlock()
		return
	}
	changed := m.state.Loading || m.state.Enabled != status.MockMode
	m.stopTimerLocked()
	m.state = ToggleState{Enabled: status.MockMode}
	state := m.state
	m.mu.Unlock()

	if changed {
		m.hub.Publish(state)
	}
}

// State returns the current flag.
func (m *MockToggle) State() ToggleState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers fn for every flag change.
func (m *MockToggle) Subscribe(fn func(ToggleState)) (unsubscribe func()) {
	return m.hub.Subscribe(fn)
}

func (m *MockToggle) expire(gen uint64) {
	m.revert(gen, "confirmation timed out")
}

func (m *MockToggle) revert(gen uint64, reason string) {
	m.mu.Lock()
	if gen != m.gen || !m.state.Loading {
		m.mu.Unlock()
		return
	}
	m.stopTimerLocked()
	requested := m.state.Enabled
	m.state = ToggleState{Enabled: m.confirmed}
	state := m.state
	m.mu.Unlock()

	log.Warn().
		Bool("requested", requested).
		Bool("reverted_to", state.Enabled).
		Str("reason", reason).
		Msg("mock mode toggle reverted")
	m.hub.Publish(state)
}

func (m *MockToggle) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
