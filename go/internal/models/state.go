package models

// SystemState is the full snapshot the server pushes on every change.
type SystemState struct {
	Session             *Session        `json:"session"`
	PhoneStatus         PhoneStatus     `json:"phone_status"`
	PresenceStatus      PresenceStatus  `json:"presence_status"`
	BoxStatus           BoxStatus       `json:"box_status"`
	NoiseStatus         NoiseStatus     `json:"noise_status"`
	CurrentDB           int             `json:"current_db"`
	TodayViolationCount int             `json:"today_violation_count"`
	LastSensorData      *SensorData     `json:"last_sensor_data"`
	HardwareState       HardwareState   `json:"hardware_state"`
	PrepareRemainingMS  int64           `json:"prepare_remaining_ms"`
	PersonAwaySince     *Timestamp      `json:"person_away_since,omitempty"`
	NoiseStartTime      *Timestamp      `json:"noise_start_time,omitempty"`
	PenaltySettings     PenaltySettings `json:"penalty_settings"`
	PenaltyConfig       PenaltyConfig   `json:"penalty_config"`
}

// EffectivePenaltyConfig returns the session's config when present, else the global one.
func (s *SystemState) EffectivePenaltyConfig() PenaltyConfig {
	if s.Session != nil && s.Session.PenaltyConfig != nil {
		return *s.Session.PenaltyConfig
	}
	return s.PenaltyConfig
}

// MockSensorOverride is the body of a manual sensor override request.
type MockSensorOverride struct {
	PhoneInserted bool `json:"phone_inserted"`
	PersonPresent bool `json:"person_present"`
	NFCValid      bool `json:"nfc_valid"`
	BoxOpen       bool `json:"box_open"`
	NoiseMin      *int `json:"noise_min,omitempty"`
	NoiseMax      *int `json:"noise_max,omitempty"`
}

// MockStatePatch is the body of a partial mock state update; nil fields are left untouched.
type MockStatePatch struct {
	PhoneInserted *bool `json:"phone_inserted,omitempty"`
	PersonPresent *bool `json:"person_present,omitempty"`
	NFCValid      *bool `json:"nfc_valid,omitempty"`
	BoxLocked     *bool `json:"box_locked,omitempty"`
	BoxOpen       *bool `json:"box_open,omitempty"`
	NoiseMin      *int  `json:"noise_min,omitempty"`
	NoiseMax      *int  `json:"noise_max,omitempty"`
}
