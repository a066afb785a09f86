package mirror

import "github.com/mcdev12/focusguard/go/internal/models"

// DefaultHistoryCapacity is how many sensor samples are kept for trend display.
const DefaultHistoryCapacity = 60

// History is an immutable bounded buffer of sensor samples, oldest first.
// Append returns a new History and never touches the receiver's backing array.
type History struct {
	capacity int
	samples  []models.SensorData
}

// NewHistory creates an empty history holding at most capacity samples.
func NewHistory(capacity int) History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return History{capacity: capacity}
}

// Append adds sample, dropping the oldest one when full.
func (h History) Append(sample models.SensorData) History {
	capacity := h.Capacity()
	start := 0
	if len(h.samples) >= capacity {
		start = len(h.samples) - capacity + 1
	}

	next := make([]models.SensorData, 0, capacity)
	next = append(next, h.samples[start:]...)
	next = append(next, sample)
	return History{capacity: capacity, samples: next}
}

// Clear returns an empty history with the same capacity.
func (h History) Clear() History {
	return History{capacity: h.capacity}
}

// Len returns the number of samples held.
func (h History) Len() int {
	return len(h.samples)
}

// Capacity returns the maximum number of samples.
func (h History) Capacity() int {
	if h.capacity <= 0 {
		return DefaultHistoryCapacity
	}
	return h.capacity
}

// Samples returns a copy of the samples, oldest first.
func (h History) Samples() []models.SensorData {
	out := make([]models.SensorData, len(h.samples))
	copy(out, h.samples)
	return out
}
