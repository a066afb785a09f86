package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// ServerEvent is one named push received from the backend.
type ServerEvent struct {
	ID         string          `json:"id"`          // Client-assigned UUID
	Type       EventType       `json:"type"`        // Event name as sent by the server
	ReceivedAt time.Time       `json:"received_at"` // Local receive time
	Data       json.RawMessage `json:"data"`        // Event-specific payload
}

// EventType is the name of a server push.
type EventType string

const (
	EventSystemState         EventType = "system_state"
	EventHardwareStatus      EventType = "hardware_status"
	EventHardwareStateChange EventType = "hardware_state_change"
	EventPenaltyTriggered    EventType = "penalty_triggered"
	EventPenaltyLevel        EventType = "penalty_level"
	EventPenaltyState        EventType = "penalty_state"
	EventError               EventType = "error"
)

// Outbound event names.
const (
	EmitStartSession          = "start_session"
	EmitToggleMockHardware    = "toggle_mock_hardware"
	EmitUpdatePenaltySettings = "update_penalty_settings"
	EmitUpdatePenaltyConfig   = "update_penalty_config"
)

// ErrorPayload is the body of a generic error push.
type ErrorPayload struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// ParseEventPayload parses event data into the matching models type.
// Unknown event types yield (nil, nil).
func ParseEventPayload(event ServerEvent) (interface{}, error) {
	switch event.Type {
	case EventSystemState:
		var payload models.SystemState
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventHardwareStatus:
		var payload models.HardwareStatus
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventHardwareStateChange:
		var payload models.HardwareStateChange
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventPenaltyTriggered:
		var payload models.PenaltyTriggered
		if err := unmarshalOptional(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventPenaltyLevel:
		var payload models.PenaltyLevelChange
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventPenaltyState:
		var payload models.PenaltyStateDetail
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	case EventError:
		var payload ErrorPayload
		if err := unmarshalOptional(event.Data, &payload); err != nil {
			return nil, fmt.Errorf("parse %s: %w", event.Type, err)
		}
		return payload, nil

	default:
		return nil, nil
	}
}

// unmarshalOptional accepts a missing payload as the zero value.
func unmarshalOptional(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
