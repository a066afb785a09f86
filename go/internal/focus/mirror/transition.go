package mirror

import (
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// Model is everything the mirror holds. Values reachable from a Model are never
// mutated after it is built; a new push always produces a new Model.
type Model struct {
	State                *models.SystemState
	StateReceivedAt      time.Time
	Hardware             *models.HardwareStatus
	HardwareReceivedAt   time.Time
	LastTransition       *models.HardwareStateChange
	TransitionReceivedAt time.Time
	History              History
}

// PushKind identifies which inbound event a Push carries.
type PushKind int

const (
	PushSystemState PushKind = iota
	PushHardwareStatus
	PushHardwareTransition
)

// Push is one confirmed server update.
type Push struct {
	Kind       PushKind
	ReceivedAt time.Time
	State      *models.SystemState
	Hardware   *models.HardwareStatus
	Transition *models.HardwareStateChange
}

// Apply is the mirror's transition function. It is pure: the old model is left intact.
//
// System state snapshots replace the previous snapshot wholesale and append their
// sensor sample to the history. A hardware status that leaves simulated mode purges
// the history first, since simulated samples say nothing about the real device.
func Apply(old Model, push Push) Model {
	next := old

	switch push.Kind {
	case PushSystemState:
		if push.State == nil {
			return old
		}
		next.State = push.State
		next.StateReceivedAt = push.ReceivedAt
		if push.State.LastSensorData != nil {
			next.History = next.History.Append(*push.State.LastSensorData)
		}

	case PushHardwareStatus:
		if push.Hardware == nil {
			return old
		}
		if LeftMockMode(old.Hardware, push.Hardware) {
			next.History = next.History.Clear()
		}
		next.Hardware = push.Hardware
		next.HardwareReceivedAt = push.ReceivedAt

	case PushHardwareTransition:
		if push.Transition == nil {
			return old
		}
		next.LastTransition = push.Transition
		next.TransitionReceivedAt = push.ReceivedAt
		if old.Hardware != nil && push.Transition.CurrentState.Valid() {
			hw := *old.Hardware
			hw.HardwareState = push.Transition.CurrentState
			next.Hardware = &hw
		}
	}

	return next
}

// LeftMockMode reports a simulated-to-real hardware switch.
func LeftMockMode(prev, next *models.HardwareStatus) bool {
	return prev != nil && next != nil && prev.MockMode && !next.MockMode
}
