package sequencer

import "errors"

var (
	// ErrNothingToExecute is delivered when a trigger resolves to zero platforms.
	ErrNothingToExecute = errors.New("no penalty platform configured")
	// ErrCancelled is delivered when a run stops before reaching its final step.
	ErrCancelled = errors.New("penalty sequence cancelled")
)
