package models

// Platform identifies a social/notification channel a penalty can post to.
type Platform string

const (
	PlatformDiscord Platform = "discord"
	PlatformThreads Platform = "threads"
	PlatformGmail   Platform = "gmail"
)

// AllPlatforms lists the platforms in display order.
var AllPlatforms = []Platform{PlatformDiscord, PlatformThreads, PlatformGmail}

// PenaltyLevel is the server-declared escalation tier.
type PenaltyLevel string

const (
	PenaltyLevelNone    PenaltyLevel = "NONE"
	PenaltyLevelPenalty PenaltyLevel = "PENALTY"
)

// PenaltyConfig decides which sensor behaviours count as violations.
type PenaltyConfig struct {
	EnablePhonePenalty    bool `json:"enable_phone_penalty"`
	EnablePresencePenalty bool `json:"enable_presence_penalty"`
	EnableNoisePenalty    bool `json:"enable_noise_penalty"`
	EnableBoxOpenPenalty  bool `json:"enable_box_open_penalty"`
	NoiseThresholdDB      int  `json:"noise_threshold_db"`
	NoiseDurationSec      int  `json:"noise_duration_sec"`
	PresenceDurationSec   int  `json:"presence_duration_sec"`
}

// DefaultPenaltyConfig mirrors the backend defaults.
func DefaultPenaltyConfig() PenaltyConfig {
	return PenaltyConfig{
		EnablePhonePenalty:    true,
		EnablePresencePenalty: true,
		EnableNoisePenalty:    true,
		EnableBoxOpenPenalty:  true,
		NoiseThresholdDB:      70,
		NoiseDurationSec:      3,
		PresenceDurationSec:   10,
	}
}

// ProgressivePenaltyRule maps a violation count threshold to the platforms that act.
type ProgressivePenaltyRule struct {
	ViolationCount int        `json:"violation_count"`
	Platforms      []Platform `json:"platforms"`
}

// PenaltySettings holds what happens once a penalty runs.
type PenaltySettings struct {
	EnabledPlatforms      []Platform               `json:"enabled_platforms"`
	CustomMessages        map[Platform]string      `json:"custom_messages"`
	GmailRecipients       []string                 `json:"gmail_recipients"`
	IncludeTimestamp      bool                     `json:"include_timestamp"`
	IncludeViolationCount bool                     `json:"include_violation_count"`
	ProgressiveRules      []ProgressivePenaltyRule `json:"progressive_rules"`
}

// IsEnabled reports whether p is in the enabled platform list.
func (s PenaltySettings) IsEnabled(p Platform) bool {
	for _, enabled := range s.EnabledPlatforms {
		if enabled == p {
			return true
		}
	}
	return false
}

// PenaltyLevelChange is the payload of a penalty_level push.
type PenaltyLevelChange struct {
	Level      PenaltyLevel `json:"level"`
	Count      int          `json:"count"`
	TodayCount int          `json:"today_count"`
	Reason     string       `json:"reason,omitempty"`
	Action     string       `json:"action,omitempty"`
}

// PenaltyStateType is the kind of a penalty_state push.
type PenaltyStateType string

const (
	PenaltyStateWarning   PenaltyStateType = "warning"
	PenaltyStateExecuted  PenaltyStateType = "executed"
	PenaltyStateCancelled PenaltyStateType = "cancelled"
	// PenaltyStatePenaltyExecuted is the spelling the backend currently broadcasts.
	PenaltyStatePenaltyExecuted PenaltyStateType = "penalty_executed"
)

// PenaltyStateDetail is the payload of a penalty_state push.
type PenaltyStateDetail struct {
	Type                PenaltyStateType `json:"type"`
	Level               PenaltyLevel     `json:"level,omitempty"`
	GracePeriodSec      int              `json:"grace_period,omitempty"`
	ViolationCount      int              `json:"violation_count"`
	TodayViolationCount int              `json:"today_violation_count"`
	Reason              string           `json:"reason,omitempty"`
}

// PenaltyTriggered is the payload of the one-shot penalty_triggered push.
type PenaltyTriggered struct {
	Timestamp           *Timestamp `json:"timestamp,omitempty"`
	Violations          int        `json:"violations"`
	SessionViolations   int        `json:"session_violations"`
	HasHostage          bool       `json:"has_hostage"`
	TodayViolationCount int        `json:"today_violation_count"`
}
