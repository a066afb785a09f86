// Package mirror is the single-writer cache of server-pushed state.
package mirror

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/pubsub"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// Snapshot is an immutable view of the mirror handed to readers.
type Snapshot struct {
	Model
	// Samples is a copy of the sensor history, oldest first.
	Samples []models.SensorData
}

// Mirror holds the latest confirmed SystemState and HardwareStatus. Only inbound
// pushes change it; optimistic or unconfirmed values never land here.
type Mirror struct {
	mu    sync.RWMutex
	model Model
	clock clockwork.Clock
	hub   *pubsub.Hub[Snapshot]
}

// New creates an empty mirror whose history holds capacity samples.
func New(clock clockwork.Clock, capacity int) *Mirror {
	return &Mirror{
		model: Model{History: NewHistory(capacity)},
		clock: clock,
		hub:   pubsub.NewHub[Snapshot]("mirror"),
	}
}

// ApplyState records a system_state push.
func (m *Mirror) ApplyState(state *models.SystemState) Snapshot {
	return m.apply(Push{Kind: PushSystemState, State: state})
}

// ApplyHardware records a hardware_status push or fetch result.
func (m *Mirror) ApplyHardware(status *models.HardwareStatus) Snapshot {
	return m.apply(Push{Kind: PushHardwareStatus, Hardware: status})
}

// ApplyTransition records a hardware_state_change push.
func (m *Mirror) ApplyTransition(change *models.HardwareStateChange) Snapshot {
	return m.apply(Push{Kind: PushHardwareTransition, Transition: change})
}

func (m *Mirror) apply(push Push) Snapshot {
	push.ReceivedAt = m.clock.Now()

	m.mu.Lock()
	prev := m.model
	m.model = Apply(prev, push)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if push.Kind == PushHardwareStatus && LeftMockMode(prev.Hardware, push.Hardware) {
		log.Info().
			Int("purged_samples", prev.History.Len()).
			Msg("hardware left simulated mode, sensor history purged")
	}

	m.hub.Publish(snap)
	return snap
}

// Snapshot returns the current view.
func (m *Mirror) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Mirror) snapshotLocked() Snapshot {
	return Snapshot{Model: m.model, Samples: m.model.History.Samples()}
}

// Subscribe registers fn for every applied push.
func (m *Mirror) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return m.hub.Subscribe(fn)
}
