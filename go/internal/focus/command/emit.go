package command

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/gateway"
	"github.com/mcdev12/focusguard/go/internal/models"
)

// Emitter sends a named event over the persistent connection without waiting.
type Emitter interface {
	Emit(name string, data interface{}) error
}

// Sender wraps the fire-and-forget socket commands. None of them change local state;
// the server's next push is the confirmation.
type Sender struct {
	emitter Emitter
}

func NewSender(emitter Emitter) *Sender {
	return &Sender{emitter: emitter}
}

func (s *Sender) StartSession(durationMinutes int) error {
	return s.emit(gateway.EmitStartSession, map[string]int{"duration_minutes": durationMinutes})
}

func (s *Sender) ToggleMockHardware(enabled bool) error {
	return s.emit(gateway.EmitToggleMockHardware, map[string]bool{"enabled": enabled})
}

// UpdatePenaltySettings sends the full settings object; the server replaces its copy.
func (s *Sender) UpdatePenaltySettings(settings models.PenaltySettings) error {
	return s.emit(gateway.EmitUpdatePenaltySettings, settings)
}

// UpdatePenaltyConfig sends the full config object; the server replaces its copy.
func (s *Sender) UpdatePenaltyConfig(config models.PenaltyConfig) error {
	return s.emit(gateway.EmitUpdatePenaltyConfig, config)
}

func (s *Sender) emit(name string, data interface{}) error {
	if err := s.emitter.Emit(name, data); err != nil {
		log.Error().Err(err).Str("event", name).Msg("failed to emit command")
		return err
	}
	log.Info().Str("event", name).Msg("command emitted")
	return nil
}
