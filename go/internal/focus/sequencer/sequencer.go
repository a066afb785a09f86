// Package sequencer runs the penalty execution animation and issues the single
// authoritative execute call at its end.
package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusguard/go/internal/focus/pubsub"
)

// Phase is the global state of the sequencer.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseRunning  Phase = "running"
	PhaseSettling Phase = "settling"
)

// Executor performs the backend penalty execution.
type Executor interface {
	ExecutePenalty(ctx context.Context) error
}

// Config holds pacing for the animation. None of these delays affect correctness.
type Config struct {
	StepDelay   time.Duration
	SettleDelay time.Duration
	EmptyDelay  time.Duration

	// StallAfter lets a new trigger supersede a running sequence whose steps have
	// not advanced for this long. It must exceed StepDelay.
	StallAfter time.Duration
}

// DefaultConfig returns the default pacing.
func DefaultConfig() Config {
	return Config{
		StepDelay:   1200 * time.Millisecond,
		SettleDelay: 3 * time.Second,
		EmptyDelay:  2 * time.Second,
		StallAfter:  time.Minute,
	}
}

// Snapshot is the observable sequencer state.
type Snapshot struct {
	Version          uint64 `json:"version"`
	RunID            string `json:"run_id,omitempty"`
	Phase            Phase  `json:"phase"`
	Steps            []Step `json:"steps"`
	NothingToExecute bool   `json:"nothing_to_execute"`
	Executed         bool   `json:"executed"`
	ExecuteError     string `json:"execute_error,omitempty"`
}

// Sequencer turns one penalty trigger into a paced step animation followed by
// exactly one Executor call. Triggers that arrive while a run is in progress are
// dropped, so duplicate deliveries of the same push never execute twice.
type Sequencer struct {
	mu sync.Mutex

	clock    clockwork.Clock
	executor Executor
	config   Config
	hub      *pubsub.Hub[Snapshot]

	version      uint64
	phase        Phase
	steps        []Step
	runID        uuid.UUID
	lastProgress time.Time
	empty        bool
	executed     bool
	execErr      string
	runCtx       context.Context
	cancel       context.CancelFunc
	result       chan error
	parentCtx    context.Context
}

// New creates an idle sequencer.
func New(clock clockwork.Clock, executor Executor, config Config) *Sequencer {
	return &Sequencer{
		clock:    clock,
		executor: executor,
		config:   config,
		hub:      pubsub.NewHub[Snapshot]("sequencer"),
		phase:    PhaseIdle,
	}
}

// Trigger starts a fresh sequence for plan. It returns a channel that receives the
// outcome of the execute call exactly once (nil on success), and false when the
// trigger was suppressed because a sequence is already in progress.
func (s *Sequencer) Trigger(ctx context.Context, plan Plan) (<-chan error, bool) {
	s.mu.Lock()

	if s.phase != PhaseIdle {
		if s.phase == PhaseRunning && s.config.StallAfter > 0 && s.clock.Since(s.lastProgress) >= s.config.StallAfter {
			log.Warn().Str("run_id", s.runID.String()).Msg("superseding stalled penalty sequence")
			s.stopLocked(ErrCancelled)
		} else {
			runID := s.runID
			phase := s.phase
			s.mu.Unlock()
			log.Info().
				Str("run_id", runID.String()).
				Str("phase", string(phase)).
				Msg("duplicate penalty trigger suppressed")
			return nil, false
		}
	}

	if plan.At.IsZero() {
		plan.At = s.clock.Now()
	}

	runCtx, cancel := context.WithCancel(ctx)
	result := make(chan error, 1)

	s.runID = uuid.New()
	s.lastProgress = s.clock.Now()
	s.steps = GenerateSteps(plan)
	s.empty = len(s.steps) == 0
	s.executed = false
	s.execErr = ""
	s.runCtx = runCtx
	s.cancel = cancel
	s.result = result
	s.parentCtx = ctx

	runID := s.runID
	if s.empty {
		s.phase = PhaseSettling
		s.deliver(result, ErrNothingToExecute)
		s.result = nil
	} else {
		s.phase = PhaseRunning
		s.steps = Advance(s.steps, s.steps[0].ID)
	}
	ids := stepIDs(s.steps)
	snap := s.changedLocked()
	s.mu.Unlock()

	log.Info().
		Str("run_id", runID.String()).
		Int("steps", len(ids)).
		Int("today_count", plan.TodayCount).
		Msg("penalty sequence started")

	s.hub.Publish(snap)

	if len(ids) == 0 {
		log.Info().Str("run_id", runID.String()).Msg("nothing to execute for penalty trigger")
		go s.resetAfter(runCtx, runID, s.config.EmptyDelay)
		return result, true
	}

	go s.pace(runCtx, runID, ids)
	return result, true
}

// Close cancels any run in progress and returns to idle.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}
	s.stopLocked(ErrCancelled)
	snap := s.changedLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)
}

// Snapshot returns the current state.
func (s *Sequencer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change.
func (s *Sequencer) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.hub.Subscribe(fn)
}

// pace walks the step list, then emits the sentinel.
func (s *Sequencer) pace(ctx context.Context, runID uuid.UUID, ids []string) {
	for _, id := range append(ids[1:], SentinelComplete) {
		if !s.sleep(ctx, s.config.StepDelay) {
			s.abort(runID)
			return
		}
		if !s.progress(runID, id) {
			return
		}
	}
}

// progress applies stepID to run runID. It returns false once the run is no longer running.
func (s *Sequencer) progress(runID uuid.UUID, stepID string) bool {
	s.mu.Lock()
	if s.runID != runID || s.phase != PhaseRunning {
		s.mu.Unlock()
		return false
	}

	if stepID != SentinelComplete && indexOf(s.steps, stepID) < 0 {
		s.mu.Unlock()
		log.Debug().Str("step_id", stepID).Msg("ignoring progress for unknown step")
		return true
	}

	s.steps = Advance(s.steps, stepID)
	s.lastProgress = s.clock.Now()
	if stepID != SentinelComplete {
		snap := s.changedLocked()
		s.mu.Unlock()
		s.hub.Publish(snap)
		return true
	}

	s.phase = PhaseSettling
	shouldExecute := !s.executed
	s.executed = true
	ctx := s.parentCtx
	runCtx := s.runCtx
	result := s.result
	s.result = nil
	snap := s.changedLocked()
	s.mu.Unlock()

	s.hub.Publish(snap)

	// The execute call outlives Close: once the sentinel is reached the backend call
	// is committed, so it runs on the caller's context rather than the run's.
	if shouldExecute {
		go s.execute(ctx, runID, result)
	}
	go s.resetAfter(runCtx, runID, s.config.SettleDelay)
	return false
}

func (s *Sequencer) execute(ctx context.Context, runID uuid.UUID, result chan error) {
	err := s.safeExecute(ctx)

	s.mu.Lock()
	current := s.runID == runID && s.phase != PhaseIdle
	failed := current && err != nil
	var snap Snapshot
	if failed {
		s.execErr = err.Error()
		s.steps = MarkError(s.steps, StepComplete)
		snap = s.changedLocked()
	}
	s.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("run_id", runID.String()).Msg("penalty execution failed")
	} else {
		log.Info().Str("run_id", runID.String()).Msg("penalty executed")
	}

	if failed {
		s.hub.Publish(snap)
	}
	if result != nil {
		s.deliver(result, err)
	}
}

func (s *Sequencer) safeExecute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("penalty executor panicked: %v", r)
		}
	}()
	return s.executor.ExecutePenalty(ctx)
}

func (s *Sequencer) resetAfter(ctx context.Context, runID uuid.UUID, d time.Duration) {
	if !s.sleep(ctx, d) {
		s.abort(runID)
		return
	}

	s.mu.Lock()
	if s.runID != runID || s.phase != PhaseSettling {
		s.mu.Unlock()
		return
	}
	s.toIdleLocked()
	snap := s.changedLocked()
	s.mu.Unlock()

	log.Debug().Str("run_id", runID.String()).Msg("penalty sequence reset to idle")
	s.hub.Publish(snap)
}

// abort returns to idle when the caller's context ends a run that Close did not.
func (s *Sequencer) abort(runID uuid.UUID) {
	s.mu.Lock()
	if s.runID != runID || s.phase == PhaseIdle {
		s.mu.Unlock()
		return
	}
	s.stopLocked(ErrCancelled)
	snap := s.changedLocked()
	s.mu.Unlock()

	log.Info().Str("run_id", runID.String()).Msg("penalty sequence aborted")
	s.hub.Publish(snap)
}

// stopLocked cancels the current run and resolves its result if still pending.
func (s *Sequencer) stopLocked(reason error) {
	if s.result != nil {
		s.deliver(s.result, reason)
	}
	s.toIdleLocked()
}

func (s *Sequencer) toIdleLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.phase = PhaseIdle
	s.steps = nil
	s.empty = false
	s.execErr = ""
	s.runCtx = nil
	s.cancel = nil
	s.result = nil
}

// deliver sends the outcome once; the channel has room for exactly one value.
func (s *Sequencer) deliver(result chan error, err error) {
	select {
	case result <- err:
	default:
	}
}

func (s *Sequencer) sleep(ctx context.Context, d time.Duration) bool {
	timer := s.clock.NewTimer(d)
	defer stopAndDrainTimer(timer)

	select {
	case <-timer.Chan():
		return true
	case <-ctx.Done():
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// changedLocked records a state change and returns the new snapshot.
func (s *Sequencer) changedLocked() Snapshot {
	s.version++
	return s.snapshotLocked()
}

func (s *Sequencer) snapshotLocked() Snapshot {
	steps := make([]Step, len(s.steps))
	copy(steps, s.steps)

	snap := Snapshot{
		Version:          s.version,
		Phase:            s.phase,
		Steps:            steps,
		NothingToExecute: s.empty,
		Executed:         s.executed,
		ExecuteError:     s.execErr,
	}
	if s.phase != PhaseIdle {
		snap.RunID = s.runID.String()
	}
	return snap
}

func stepIDs(steps []Step) []string {
	ids := make([]string, len(steps))
	for i, st := range steps {
		ids[i] = st.ID
	}
	return ids
}
