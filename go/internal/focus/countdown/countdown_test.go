package countdown

import (
	"testing"
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestCompute_NotStarted(t *testing.T) {
	for _, status := range []models.SessionStatus{
		models.SessionStatusIdle,
		models.SessionStatusCompleted,
		models.SessionStatusViolated,
	} {
		got := Compute(Input{Status: status, DurationMinutes: 25, StartTime: t0}, t0.Add(time.Minute))
		if got.RemainingMS != 25*60_000 || got.Progress != 0 {
			t.Errorf("status %s: got %+v, want full duration and zero progress", status, got)
		}
	}
}

func TestCompute_ActiveWithoutStartTime(t *testing.T) {
	got := Compute(Input{Status: models.SessionStatusActive, DurationMinutes: 10}, t0)
	if got.RemainingMS != 10*60_000 || got.Progress != 0 {
		t.Fatalf("got %+v", got)
	}
}

func TestCompute_PauseFreezesTime(t *testing.T) {
	cases := []struct {
		duration int
		paused   int
	}{
		{1, 0}, {25, 0}, {25, 180}, {60, 59}, {90, 3600},
	}

	for _, tc := range cases {
		pausedAt := t0.Add(4 * time.Minute)
		in := Input{
			Status:             models.SessionStatusPaused,
			StartTime:          t0,
			DurationMinutes:    tc.duration,
			TotalPausedSeconds: tc.paused,
			PausedAt:           pausedAt,
		}

		base := Compute(in, pausedAt)
		for _, delta := range []time.Duration{time.Millisecond, time.Second, 3 * time.Minute, 48 * time.Hour} {
			if got := Compute(in, pausedAt.Add(delta)); got != base {
				t.Errorf("duration=%d paused=%d delta=%s: got %+v, want frozen %+v", tc.duration, tc.paused, delta, got, base)
			}
		}
	}
}

func TestCompute_ProgressMonotonicAndBounded(t *testing.T) {
	in := Input{Status: models.SessionStatusActive, StartTime: t0, DurationMinutes: 7, TotalPausedSeconds: 30}

	last := -1.0
	for offset := -time.Minute; offset <= 10*time.Minute; offset += 7 * time.Second {
		got := Compute(in, t0.Add(offset))
		if got.Progress < 0 || got.Progress > 100 {
			t.Fatalf("offset %s: progress %f out of range", offset, got.Progress)
		}
		if got.Progress < last {
			t.Fatalf("offset %s: progress went backwards %f -> %f", offset, last, got.Progress)
		}
		if got.RemainingMS < 0 || got.RemainingMS > in.TotalMS() {
			t.Fatalf("offset %s: remaining %d out of range", offset, got.RemainingMS)
		}
		last = got.Progress
	}
	if last != 100 {
		t.Fatalf("expected completed progress at the end, got %f", last)
	}
}

func TestCompute_FullSessionLifecycle(t *testing.T) {
	session := &models.Session{
		ID:              "s1",
		DurationMinutes: 25,
		Status:          models.SessionStatusActive,
		StartTime:       models.NewTimestamp(t0),
	}

	at5 := t0.Add(5 * time.Minute)
	got := Compute(FromSession(session), at5)
	if got.RemainingMS != 20*60_000 {
		t.Fatalf("remaining at +5m = %d, want %d", got.RemainingMS, 20*60_000)
	}
	if got.Progress != 20.0 {
		t.Fatalf("progress at +5m = %f, want 20", got.Progress)
	}

	session.Status = models.SessionStatusPaused
	session.PausedAt = models.NewTimestamp(at5)
	if got := Compute(FromSession(session), at5.Add(3*time.Minute)); got.RemainingMS != 20*60_000 {
		t.Fatalf("remaining while paused = %d, want frozen at %d", got.RemainingMS, 20*60_000)
	}

	resumeAt := at5.Add(3 * time.Minute)
	session.Status = models.SessionStatusActive
	session.PausedAt = nil
	session.TotalPausedSeconds += 180

	if got := Compute(FromSession(session), resumeAt); got.RemainingMS != 20*60_000 {
		t.Fatalf("remaining right after resume = %d, want %d", got.RemainingMS, 20*60_000)
	}
	if got := Compute(FromSession(session), resumeAt.Add(time.Minute)); got.RemainingMS != 19*60_000 {
		t.Fatalf("remaining one minute after resume = %d, want %d", got.RemainingMS, 19*60_000)
	}
}

func TestCompute_ClampsAtZero(t *testing.T) {
	in := Input{Status: models.SessionStatusActive, StartTime: t0, DurationMinutes: 1}
	got := Compute(in, t0.Add(time.Hour))
	if got.RemainingMS != 0 || got.Progress != 100 {
		t.Fatalf("got %+v", got)
	}
}

func TestFromSession_Nil(t *testing.T) {
	if got := FromSession(nil); got.Status != models.SessionStatusIdle {
		t.Fatalf("got %+v", got)
	}
}

func TestFocusElapsed(t *testing.T) {
	cases := []struct {
		name  string
		state models.HardwareState
		at    time.Time
		now   time.Time
		want  int64
	}{
		{"focusing advances", models.HardwareStateFocusing, t0, t0.Add(90 * time.Second), 91_200},
		{"paused is frozen", models.HardwareStatePaused, t0, t0.Add(90 * time.Second), 1200},
		{"violation is frozen", models.HardwareStateViolation, t0, t0.Add(time.Hour), 1200},
		{"never received", models.HardwareStateFocusing, time.Time{}, t0, 1200},
		{"clock behind push", models.HardwareStateFocusing, t0, t0.Add(-time.Second), 1200},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FocusElapsed(1200, tc.state, tc.at, tc.now); got != tc.want {
				t.Fatalf("FocusElapsed = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestComputeGrace(t *testing.T) {
	cfg := models.DefaultPenaltyConfig()
	state := &models.SystemState{
		PenaltyConfig:      cfg,
		PersonAwaySince:    models.NewTimestamp(t0),
		NoiseStartTime:     models.NewTimestamp(t0.Add(time.Second)),
		HardwareState:      models.HardwareStatePreparing,
		PrepareRemainingMS: 10_000,
	}

	g := ComputeGrace(state, t0, t0.Add(2*time.Second))
	if g.PresenceRemainingMS == nil || *g.PresenceRemainingMS != 8_000 {
		t.Fatalf("presence grace = %v", g.PresenceRemainingMS)
	}
	if g.NoiseRemainingMS == nil || *g.NoiseRemainingMS != 2_000 {
		t.Fatalf("noise grace = %v", g.NoiseRemainingMS)
	}
	if g.PrepareRemainingMS != 8_000 {
		t.Fatalf("prepare = %d", g.PrepareRemainingMS)
	}

	late := ComputeGrace(state, t0, t0.Add(time.Minute))
	if *late.PresenceRemainingMS != 0 || *late.NoiseRemainingMS != 0 || late.PrepareRemainingMS != 0 {
		t.Fatalf("expected expired windows to clamp at zero, got %+v", late)
	}

	state.PenaltyConfig.EnableNoisePenalty = false
	state.HardwareState = models.HardwareStateFocusing
	g = ComputeGrace(state, t0, t0)
	if g.NoiseRemainingMS != nil || g.PrepareRemainingMS != 0 {
		t.Fatalf("disabled noise or non-preparing state should not count down: %+v", g)
	}
}

func TestZeroWatcher_FiresOncePerSession(t *testing.T) {
	w := NewZeroWatcher()
	zero := Reading{RemainingMS: 0, Progress: 100}

	if w.Observe("a", models.SessionStatusActive, Reading{RemainingMS: 1}) {
		t.Fatal("fired before zero")
	}
	if w.Observe("a", models.SessionStatusPaused, zero) {
		t.Fatal("fired while paused")
	}
	if !w.Observe("a", models.SessionStatusActive, zero) {
		t.Fatal("did not fire at zero")
	}
	for i := 0; i < 3; i++ {
		if w.Observe("a", models.SessionStatusActive, zero) {
			t.Fatal("fired twice for the same session")
		}
	}
	if !w.Observe("b", models.SessionStatusActive, zero) {
		t.Fatal("a new session should fire again")
	}

	w.Forget("b")
	if !w.Observe("a", models.SessionStatusActive, zero) {
		t.Fatal("forgotten session should be observable again")
	}
}
