package models

// HardwareState is the device's own state machine, independent of SessionStatus.
type HardwareState string

const (
	HardwareStateIdle      HardwareState = "IDLE"
	HardwareStatePreparing HardwareState = "PREPARING"
	HardwareStateFocusing  HardwareState = "FOCUSING"
	HardwareStatePaused    HardwareState = "PAUSED"
	HardwareStateViolation HardwareState = "VIOLATION"
	HardwareStateError     HardwareState = "ERROR"
)

// Valid reports whether s is a known hardware state.
func (s HardwareState) Valid() bool {
	switch s {
	case HardwareStateIdle, HardwareStatePreparing, HardwareStateFocusing,
		HardwareStatePaused, HardwareStateViolation, HardwareStateError:
		return true
	}
	return false
}

// PhoneStatus is whether the phone sits in the box.
type PhoneStatus string

const (
	PhoneStatusLocked  PhoneStatus = "LOCKED"
	PhoneStatusRemoved PhoneStatus = "REMOVED"
	PhoneStatusUnknown PhoneStatus = "UNKNOWN"
)

// PresenceStatus is whether a person is detected at the desk.
type PresenceStatus string

const (
	PresenceStatusDetected PresenceStatus = "DETECTED"
	PresenceStatusAway     PresenceStatus = "AWAY"
	PresenceStatusUnknown  PresenceStatus = "UNKNOWN"
)

// BoxStatus is whether the box lid is open.
type BoxStatus string

const (
	BoxStatusClosed  BoxStatus = "CLOSED"
	BoxStatusOpen    BoxStatus = "OPEN"
	BoxStatusUnknown BoxStatus = "UNKNOWN"
)

// NoiseStatus is the ambient noise classification.
type NoiseStatus string

const (
	NoiseStatusQuiet   NoiseStatus = "QUIET"
	NoiseStatusNoisy   NoiseStatus = "NOISY"
	NoiseStatusUnknown NoiseStatus = "UNKNOWN"
)

// SensorData is one raw sample reported by the device (real or simulated).
type SensorData struct {
	State         string  `json:"state,omitempty"`
	BoxOpen       bool    `json:"box_open"`
	RadarPresence bool    `json:"radar_presence"`
	Timestamp     *int64  `json:"timestamp,omitempty"`
	Uptime        *int64  `json:"uptime,omitempty"`
	NFCID         *string `json:"nfc_id,omitempty"`
	MicDB         int     `json:"mic_db"`
	BoxLocked     bool    `json:"box_locked"`
	NFCDetected   bool    `json:"nfc_detected"`
	LDRDetected   bool    `json:"ldr_detected"`
	RadarDetected bool    `json:"radar_detected"`
}

// MockState echoes the server's simulated sensor values.
type MockState struct {
	PhoneInserted bool `json:"phone_inserted"`
	PersonPresent bool `json:"person_present"`
	NFCValid      bool `json:"nfc_valid"`
	BoxLocked     bool `json:"box_locked"`
	BoxOpen       bool `json:"box_open"`
	ManualMode    bool `json:"manual_mode"`
	NoiseMin      int  `json:"noise_min"`
	NoiseMax      int  `json:"noise_max"`
}

// HardwareStatus is the connectivity and mode report for the device.
type HardwareStatus struct {
	Connected       bool          `json:"connected"`
	MockMode        bool          `json:"mock_mode"`
	MockState       *MockState    `json:"mock_state,omitempty"`
	LastSensorData  *SensorData   `json:"last_sensor_data,omitempty"`
	NFCDetected     bool          `json:"nfc_detected"`
	LDRDetected     bool          `json:"ldr_detected"`
	HallDetected    bool          `json:"hall_detected"`
	IRDetected      bool          `json:"ir_detected"`
	RadarDetected   bool          `json:"radar_detected"`
	LCDDetected     bool          `json:"lcd_detected"`
	HardwareState   HardwareState `json:"hardware_state"`
	FirmwareVersion string        `json:"firmware_version,omitempty"`
}

// HardwareStateChange is a transition of the device state machine.
type HardwareStateChange struct {
	PreviousState    HardwareState `json:"previous_state"`
	CurrentState     HardwareState `json:"current_state"`
	TotalFocusTimeMS int64         `json:"total_focus_time_ms"`
}
