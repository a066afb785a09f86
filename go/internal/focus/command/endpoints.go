package command

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/models"
)

const (
	pathSessionStop     = "/api/sessions/stop"
	pathSessionPause    = "/api/sessions/pause"
	pathSessionResume   = "/api/sessions/resume"
	pathPenaltyExecute  = "/api/penalty/execute"
	pathHardwareStatus  = "/api/hardware/status"
	pathMockManual      = "/api/hardware/mock/manual"
	pathMockState       = "/api/hardware/mock/state"
	pathCommandLock     = "/api/hardware/command/lock"
	pathCommandUnlock   = "/api/hardware/command/unlock"
	pathSocialLoginInfo = "/api/social/login-status"
)

// ExecuteResult is the outcome of a penalty execution.
type ExecuteResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	PlatformsExecuted int    `json:"platforms_executed"`
}

func (c *Client) StopSession(ctx context.Context) error {
	_, err := c.do(ctx, "stop session", http.MethodPost, pathSessionStop, nil, nil)
	return err
}

func (c *Client) PauseSession(ctx context.Context) error {
	_, err := c.do(ctx, "pause session", http.MethodPost, pathSessionPause, nil, nil)
	return err
}

func (c *Client) ResumeSession(ctx context.Context) error {
	_, err := c.do(ctx, "resume session", http.MethodPost, pathSessionResume, nil, nil)
	return err
}

// Execute asks the backend to run whatever penalty it currently has queued.
func (c *Client) Execute(ctx context.Context) (ExecuteResult, error) {
	raw, err := c.do(ctx, "execute penalty", http.MethodPost, pathPenaltyExecute, nil, nil)
	if err != nil {
		return ExecuteResult{}, err
	}

	var result ExecuteResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return ExecuteResult{}, c.fail(&RequestError{Op: "execute penalty", Status: http.StatusOK, Err: err})
	}
	log.Info().
		Int("platforms_executed", result.PlatformsExecuted).
		Str("message", result.Message).
		Msg("penalty execution accepted")
	return result, nil
}

// ExecutePenalty is Execute without the result detail.
func (c *Client) ExecutePenalty(ctx context.Context) error {
	_, err := c.Execute(ctx)
	return err
}

// FetchHardwareStatus returns the current device connectivity and mode.
func (c *Client) FetchHardwareStatus(ctx context.Context) (models.HardwareStatus, error) {
	var status models.HardwareStatus
	if _, err := c.do(ctx, "fetch hardware status", http.MethodGet, pathHardwareStatus, nil, &status); err != nil {
		return models.HardwareStatus{}, err
	}
	return status, nil
}

// FetchCredentials returns which platforms have usable stored credentials.
func (c *Client) FetchCredentials(ctx context.Context) (map[models.Platform]bool, error) {
	creds := make(map[models.Platform]bool)
	if _, err := c.do(ctx, "fetch credentials", http.MethodGet, pathSocialLoginInfo, nil, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// PushManualSensors replaces every simulated sensor value and returns the stored mock state.
func (c *Client) PushManualSensors(ctx context.Context, override models.MockSensorOverride) (models.MockState, error) {
	var state models.MockState
	if _, err := c.do(ctx, "push manual sensors", http.MethodPost, pathMockManual, override, &state); err != nil {
		return models.MockState{}, err
	}
	return state, nil
}

// PatchMockState updates only the simulated sensor values set in patch.
func (c *Client) PatchMockState(ctx context.Context, patch models.MockStatePatch) (models.MockState, error) {
	var state models.MockState
	if _, err := c.do(ctx, "patch mock state", http.MethodPost, pathMockState, patch, &state); err != nil {
		return models.MockState{}, err
	}
	return state, nil
}

func (c *Client) LockBox(ctx context.Context) error {
	_, err := c.do(ctx, "lock box", http.MethodPost, pathCommandLock, nil, nil)
	return err
}

func (c *Client) UnlockBox(ctx context.Context) error {
	_, err := c.do(ctx, "unlock box", http.MethodPost, pathCommandUnlock, nil, nil)
	return err
}
