package countdown

import (
	"sync"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// ZeroWatcher reports the moment an active session's countdown reaches zero,
// at most once per session id, for consumers that own the side effects.
type ZeroWatcher struct {
	mu    sync.Mutex
	fired map[string]bool
}

// NewZeroWatcher creates an empty watcher.
func NewZeroWatcher() *ZeroWatcher {
	return &ZeroWatcher{fired: make(map[string]bool)}
}

// Observe returns true exactly once for a session whose reading hits zero while active.
func (w *ZeroWatcher) Observe(sessionID string, status models.SessionStatus, r Reading) bool {
	if sessionID == "" || status != models.SessionStatusActive || r.RemainingMS > 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.fired[sessionID] {
		return false
	}
	w.fired[sessionID] = true
	return true
}

// Forget drops every session except keep, bounding memory across sessions.
func (w *ZeroWatcher) Forget(keep string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for id := range w.fired {
		if id != keep {
			delete(w.fired, id)
		}
	}
}
