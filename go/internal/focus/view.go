package focus

import (
	"time"

	"github.com/mcdev12/focusguard/go/internal/focus/command"
	"github.com/mcdev12/focusguard/go/internal/focus/countdown"
	"github.com/mcdev12/focusguard/go/internal/focus/escalation"
	"github.com/mcdev12/focusguard/go/internal/focus/mirror"
	"github.com/mcdev12/focusguard/go/internal/focus/sequencer"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// View is everything a presentation layer renders, sampled at one instant.
type View struct {
	SampledAt      time.Time                   `json:"sampled_at"`
	Connected      bool                        `json:"connected"`
	State          *models.SystemState         `json:"state,omitempty"`
	Hardware       *models.HardwareStatus      `json:"hardware,omitempty"`
	LastTransition *models.HardwareStateChange `json:"last_transition,omitempty"`
	FocusElapsedMS int64                       `json:"focus_elapsed_ms"`
	Samples        []models.SensorData         `json:"samples"`
	Countdown      countdown.Reading           `json:"countdown"`
	Grace          countdown.Grace             `json:"grace"`
	Penalty        escalation.Status           `json:"penalty"`
	Sequencer      sequencer.Snapshot          `json:"sequencer"`
	MockToggle     command.ToggleState         `json:"mock_toggle"`
	Credentials    escalation.Credentials      `json:"credentials"`
	LastError      string                      `json:"last_error,omitempty"`
}

// View samples every component at the current instant. Countdown values are
// interpolated from the last snapshot, so calling this every frame is fine.
func (c *Client) View() View {
	now := c.clock.Now()
	snap := c.mirror.Snapshot()

	v := View{
		SampledAt:      now,
		Connected:      c.conn.Connected(),
		State:          snap.State,
		Hardware:       snap.Hardware,
		LastTransition: snap.LastTransition,
		Samples:        snap.Samples,
		Penalty:        c.tracker.Snapshot(),
		Sequencer:      c.seq.Snapshot(),
		MockToggle:     c.toggle.State(),
		Credentials:    c.credentials(),
	}

	var session *models.Session
	if snap.State != nil {
		session = snap.State.Session
	}
	v.Countdown = countdown.Compute(countdown.FromSession(session), now)
	v.Grace = countdown.ComputeGrace(snap.State, snap.StateReceivedAt, now)
	v.FocusElapsedMS = focusElapsed(snap, now)

	c.mu.RLock()
	v.LastError = c.lastError
	c.mu.RUnlock()

	return v
}

// focusElapsed interpolates the last transition's focus total. A later status fetch
// that shows the device out of focus freezes the count at the fetch.
func focusElapsed(snap mirror.Snapshot, now time.Time) int64 {
	t := snap.LastTransition
	if t == nil {
		return 0
	}
	until := now
	if snap.Hardware != nil && snap.HardwareReceivedAt.After(snap.TransitionReceivedAt) &&
		snap.Hardware.HardwareState != models.HardwareStateFocusing {
		until = snap.HardwareReceivedAt
	}
	return countdown.FocusElapsed(t.TotalFocusTimeMS, t.CurrentState, snap.TransitionReceivedAt, until)
}
