// Package countdown turns timestamped session snapshots into live countdown values.
//
// Everything here is a pure function of its inputs and the supplied instant, so any
// number of consumers sampling on every frame agree exactly given the same inputs.
package countdown

import (
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// Input is the subset of a session the interpolation depends on.
type Input struct {
	Status             models.SessionStatus
	StartTime          time.Time
	DurationMinutes    int
	TotalPausedSeconds int
	PausedAt           time.Time
}

// Reading is an instantaneous countdown value.
type Reading struct {
	RemainingMS int64   `json:"remaining_ms"`
	Progress    float64 `json:"progress"`
}

// FromSession builds an Input from a pushed session. A nil session yields an idle input.
func FromSession(s *models.Session) Input {
	if s == nil {
		return Input{Status: models.SessionStatusIdle}
	}

	in := Input{
		Status:             s.Status,
		DurationMinutes:    s.DurationMinutes,
		TotalPausedSeconds: s.TotalPausedSeconds,
	}
	if s.StartTime != nil {
		in.StartTime = s.StartTime.Time
	}
	if s.PausedAt != nil {
		in.PausedAt = s.PausedAt.Time
	}
	return in
}

// TotalMS is the configured session length in milliseconds.
func (in Input) TotalMS() int64 {
	return int64(in.DurationMinutes) * 60_000
}

// Compute returns the remaining time and progress percentage at now.
//
// While paused the evaluation instant is pinned to PausedAt, so the result does not
// move no matter how often it is sampled.
func Compute(in Input, now time.Time) Reading {
	total := in.TotalMS()

	var at time.Time
	switch in.Status {
	case models.SessionStatusActive:
		at = now
	case models.SessionStatusPaused:
		at = in.PausedAt
		if at.IsZero() {
			at = now
		}
	default:
		return Reading{RemainingMS: total, Progress: 0}
	}

	if in.StartTime.IsZero() || total <= 0 {
		return Reading{RemainingMS: total, Progress: 0}
	}

	end := in.StartTime.
		Add(time.Duration(total) * time.Millisecond).
		Add(time.Duration(in.TotalPausedSeconds) * time.Second)

	remaining := end.Sub(at).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	if remaining > total {
		// Local clock is behind the server's start time.
		remaining = total
	}

	elapsed := total - remaining
	progress := float64(elapsed) * 100 / float64(total)
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	return Reading{RemainingMS: remaining, Progress: progress}
}

// FocusElapsed extends the cumulative focus time reported by a hardware transition
// to now. It advances only while state is FOCUSING; any other state freezes it at
// totalMS.
func FocusElapsed(totalMS int64, state models.HardwareState, receivedAt, now time.Time) int64 {
	if state != models.HardwareStateFocusing || receivedAt.IsZero() || !now.After(receivedAt) {
		return totalMS
	}
	return totalMS + now.Sub(receivedAt).Milliseconds()
}
