package focus

import (
	"context"

	"github.com/mcdev12/focusguard/go/internal/focus/command"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// The methods below forward user intent. None of them touch the mirror: the
// resulting state arrives later as a server push.

// StartSession asks the backend to start a session of the given length.
func (c *Client) StartSession(durationMinutes int) error {
	return c.sender.StartSession(durationMinutes)
}

// StopSession ends the current session.
func (c *Client) StopSession(ctx context.Context) error {
	return c.api.StopSession(ctx)
}

// PauseSession pauses the current session.
func (c *Client) PauseSession(ctx context.Context) error {
	return c.api.PauseSession(ctx)
}

// ResumeSession resumes a paused session.
func (c *Client) ResumeSession(ctx context.Context) error {
	return c.api.ResumeSession(ctx)
}

// ToggleMock requests simulated hardware on or off. The toggle shows the
// requested value as loading until a hardware status push confirms it.
func (c *Client) ToggleMock(enabled bool) error {
	return c.toggle.Request(enabled)
}

// MockToggleState returns the optimistic toggle state.
func (c *Client) MockToggleState() command.ToggleState {
	return c.toggle.State()
}

// PushManualSensors overrides simulated sensor readings.
func (c *Client) PushManualSensors(ctx context.Context, override models.MockSensorOverride) (models.MockState, error) {
	return c.api.PushManualSensors(ctx, override)
}

// PatchMockState changes simulated device fields.
func (c *Client) PatchMockState(ctx context.Context, patch models.MockStatePatch) (models.MockState, error) {
	return c.api.PatchMockState(ctx, patch)
}

// UpdatePenaltySettings stores new platform settings on the backend.
func (c *Client) UpdatePenaltySettings(settings models.PenaltySettings) error {
	return c.sender.UpdatePenaltySettings(settings)
}

// UpdatePenaltyConfig stores new detection thresholds on the backend.
func (c *Client) UpdatePenaltyConfig(cfg models.PenaltyConfig) error {
	return c.sender.UpdatePenaltyConfig(cfg)
}

// LockBox closes the phone box.
func (c *Client) LockBox(ctx context.Context) error {
	return c.api.LockBox(ctx)
}

// UnlockBox opens the phone box.
func (c *Client) UnlockBox(ctx context.Context) error {
	return c.api.UnlockBox(ctx)
}
