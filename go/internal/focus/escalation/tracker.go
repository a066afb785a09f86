package escalation

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// Status is the server-declared penalty state as last pushed.
type Status struct {
	Level          models.PenaltyLevel        `json:"level"`
	Count          int                        `json:"count"`
	TodayCount     int                        `json:"today_count"`
	Reason         string                     `json:"reason,omitempty"`
	GracePeriodSec int                        `json:"grace_period_sec,omitempty"`
	LastDetail     *models.PenaltyStateDetail `json:"last_detail,omitempty"`
}

// Tracker holds the penalty level. It never derives the level itself: it moves only on
// server pushes, and a local timer or grace window expiring never changes it.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker creates a tracker at level NONE.
func NewTracker() *Tracker {
	return &Tracker{status: Status{Level: models.PenaltyLevelNone}}
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// ApplyLevel records a penalty_level push verbatim. A NONE level from the server
// counts as an explicit cancellation.
func (t *Tracker) ApplyLevel(change models.PenaltyLevelChange) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch change.Level {
	case models.PenaltyLevelPenalty, models.PenaltyLevelNone:
	default:
		log.Debug().Str("level", string(change.Level)).Msg("ignoring unknown penalty level")
		return t.status
	}

	t.status.Level = change.Level
	t.status.Count = change.Count
	t.status.TodayCount = change.TodayCount
	t.status.Reason = change.Reason
	return t.status
}

// ApplyDetail records a penalty_state push. Only a cancelled detail lowers the level.
func (t *Tracker) ApplyDetail(detail models.PenaltyStateDetail) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := detail
	t.status.LastDetail = &d
	t.status.Count = detail.ViolationCount
	if detail.TodayViolationCount > 0 {
		t.status.TodayCount = detail.TodayViolationCount
	}

	switch detail.Type {
	case models.PenaltyStateWarning:
		t.status.GracePeriodSec = detail.GracePeriodSec
	case models.PenaltyStateExecuted, models.PenaltyStatePenaltyExecuted:
		t.status.GracePeriodSec = 0
		if detail.Level == models.PenaltyLevelPenalty {
			t.status.Level = models.PenaltyLevelPenalty
		}
		if detail.Reason != "" {
			t.status.Reason = detail.Reason
		}
	case models.PenaltyStateCancelled:
		t.status.GracePeriodSec = 0
		t.status.Level = models.PenaltyLevelNone
		t.status.Reason = ""
	default:
		log.Debug().Str("type", string(detail.Type)).Msg("ignoring unknown penalty state type")
	}
	return t.status
}
