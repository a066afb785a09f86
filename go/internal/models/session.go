package models

// SessionStatus defines the lifecycle status of a focus session.
type SessionStatus string

const (
	SessionStatusIdle      SessionStatus = "IDLE"
	SessionStatusActive    SessionStatus = "ACTIVE"
	SessionStatusPaused    SessionStatus = "PAUSED"
	SessionStatusViolated  SessionStatus = "VIOLATED"
	SessionStatusCompleted SessionStatus = "COMPLETED"
)

// Session represents one focus attempt as pushed by the server.
type Session struct {
	ID                 string         `json:"id"`
	DurationMinutes    int            `json:"duration_minutes"`
	StartTime          *Timestamp     `json:"start_time,omitempty"`
	EndTime            *Timestamp     `json:"end_time,omitempty"`
	Status             SessionStatus  `json:"status"`
	Violations         int            `json:"violations"`
	PenaltiesExecuted  int            `json:"penalties_executed"`
	PenaltyConfig      *PenaltyConfig `json:"penalty_config,omitempty"`
	PausedAt           *Timestamp     `json:"paused_at,omitempty"`
	TotalPausedSeconds int            `json:"total_paused_seconds"`
}

