package countdown

import (
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// Grace holds the display-only grace countdowns derived from a snapshot.
// Reaching zero here never escalates anything; only a server push can do that.
type Grace struct {
	PresenceRemainingMS *int64 `json:"presence_remaining_ms,omitempty"`
	NoiseRemainingMS    *int64 `json:"noise_remaining_ms,omitempty"`
	PrepareRemainingMS  int64  `json:"prepare_remaining_ms"`
}

// WindowRemaining returns how much of a window opened at since is left at now.
// ok is false when no window is open.
func WindowRemaining(since *models.Timestamp, window time.Duration, now time.Time) (ms int64, ok bool) {
	if since == nil || since.IsZero() {
		return 0, false
	}
	left := since.Add(window).Sub(now).Milliseconds()
	if left < 0 {
		left = 0
	}
	return left, true
}

// SeedRemaining counts a server-provided millisecond seed down from the moment it was received.
func SeedRemaining(seedMS int64, receivedAt, now time.Time) int64 {
	if seedMS <= 0 {
		return 0
	}
	left := seedMS - now.Sub(receivedAt).Milliseconds()
	if left < 0 {
		return 0
	}
	return left
}

// ComputeGrace derives all grace countdowns for state, received at receivedAt.
func ComputeGrace(state *models.SystemState, receivedAt, now time.Time) Grace {
	var g Grace
	if state == nil {
		return g
	}

	cfg := state.EffectivePenaltyConfig()

	if cfg.EnablePresencePenalty {
		window := time.Duration(cfg.PresenceDurationSec) * time.Second
		if ms, ok := WindowRemaining(state.PersonAwaySince, window, now); ok {
			g.PresenceRemainingMS = &ms
		}
	}
	if cfg.EnableNoisePenalty {
		window := time.Duration(cfg.NoiseDurationSec) * time.Second
		if ms, ok := WindowRemaining(state.NoiseStartTime, window, now); ok {
			g.NoiseRemainingMS = &ms
		}
	}
	if state.HardwareState == models.HardwareStatePreparing {
		g.PrepareRemainingMS = SeedRemaining(state.PrepareRemainingMS, receivedAt, now)
	}

	return g
}
