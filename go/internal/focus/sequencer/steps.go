package sequencer

import (
	"fmt"
	"time"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// StepStatus is the progress of a single penalty step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in-progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// Fixed step ids. Platform steps use the platform name as their id.
const (
	StepAuth     = "auth"
	StepUpload   = "upload"
	StepComplete = "complete"

	// SentinelComplete marks the end of a sequence; it is not a step of its own.
	SentinelComplete = "_complete"
)

// Step is one line of the penalty animation.
type Step struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Status StepStatus `json:"status"`
	// Detail is a preview of what the step will post, when it posts anything.
	Detail string `json:"detail,omitempty"`
}

// Plan is the configuration a sequence is generated from.
type Plan struct {
	// Platforms are the enabled, credentialed platforms that act, in order.
	Platforms  []models.Platform
	Settings   models.PenaltySettings
	TodayCount int
	Reason     string
	At         time.Time
}

var platformLabels = map[models.Platform]string{
	models.PlatformDiscord: "Posting to Discord",
	models.PlatformThreads: "Posting to Threads",
	models.PlatformGmail:   "Sending shame email",
}

// hostagePlatforms attach the hostage image to their public post.
var hostagePlatforms = map[models.Platform]bool{
	models.PlatformDiscord: true,
	models.PlatformThreads: true,
}

// RequiresHostageImage reports whether p posts the hostage image.
func RequiresHostageImage(p models.Platform) bool {
	return hostagePlatforms[p]
}

// GenerateSteps builds a fresh step list for plan. An empty plan yields no steps.
func GenerateSteps(plan Plan) []Step {
	if len(plan.Platforms) == 0 {
		return nil
	}

	steps := []Step{{ID: StepAuth, Label: "Verifying platform credentials", Status: StepPending}}

	for _, p := range plan.Platforms {
		if RequiresHostageImage(p) {
			steps = append(steps, Step{ID: StepUpload, Label: "Uploading hostage image", Status: StepPending})
			break
		}
	}

	for _, p := range plan.Platforms {
		label, ok := platformLabels[p]
		if !ok {
			label = fmt.Sprintf("Posting to %s", p)
		}
		steps = append(steps, Step{
			ID:     string(p),
			Label:  label,
			Status: StepPending,
			Detail: ComposeMessage(plan.Settings, p, plan.TodayCount, plan.At),
		})
	}

	return append(steps, Step{ID: StepComplete, Label: "Penalty executed", Status: StepPending})
}

// Advance is the progression reducer. Steps before currentID complete, the matching
// step becomes in-progress and later steps stay pending. SentinelComplete completes
// every step. An id that is not in steps leaves them unchanged. Steps already in
// error keep that status. The input slice is never modified.
func Advance(steps []Step, currentID string) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)

	if currentID == SentinelComplete {
		for i := range out {
			if out[i].Status != StepError {
				out[i].Status = StepCompleted
			}
		}
		return out
	}

	idx := indexOf(out, currentID)
	if idx < 0 {
		return out
	}

	for i := range out {
		if out[i].Status == StepError {
			continue
		}
		switch {
		case i < idx:
			out[i].Status = StepCompleted
		case i == idx:
			out[i].Status = StepInProgress
		default:
			out[i].Status = StepPending
		}
	}
	return out
}

// MarkError flags a step as failed without affecting the others.
func MarkError(steps []Step, id string) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	if idx := indexOf(out, id); idx >= 0 {
		out[idx].Status = StepError
	}
	return out
}

func indexOf(steps []Step, id string) int {
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

const defaultPenaltyMessage = "Focus protocol broken. Discipline failed."

// ComposeMessage renders the text a platform will post, the same way the backend composes it.
func ComposeMessage(settings models.PenaltySettings, p models.Platform, todayCount int, at time.Time) string {
	msg, ok := settings.CustomMessages[p]
	if !ok || msg == "" {
		msg = defaultPenaltyMessage
	}
	if settings.IncludeTimestamp && !at.IsZero() {
		msg = fmt.Sprintf("%s\n\nViolation time: %s", msg, at.Format("2006-01-02 15:04:05"))
	}
	if settings.IncludeViolationCount {
		msg = fmt.Sprintf("%s\n\nViolations today: #%d", msg, todayCount)
	}
	return msg
}
