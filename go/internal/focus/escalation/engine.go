// Package escalation resolves which penalty platforms act for a violation count
// and tracks the penalty level the server declares.
package escalation

import (
	"sort"

	"github.com/mcdev12/focusguard/go/internal/models"
)

// Credentials reports which platforms have valid stored credentials.
type Credentials map[models.Platform]bool

// ActivePlatforms selects the rule with the greatest threshold not above count and
// returns its platforms that are present in available, in rule order.
// Platforms without credentials are dropped silently.
func ActivePlatforms(count int, rules []models.ProgressivePenaltyRule, available []models.Platform) []models.Platform {
	if count <= 0 || len(rules) == 0 {
		return nil
	}

	best := -1
	for i, rule := range rules {
		if rule.ViolationCount > count {
			continue
		}
		// Ties go to the later rule, matching list order for sorted rule sets.
		if best == -1 || rule.ViolationCount >= rules[best].ViolationCount {
			best = i
		}
	}
	if best == -1 {
		return nil
	}

	allowed := make(map[models.Platform]bool, len(available))
	for _, p := range available {
		allowed[p] = true
	}

	var out []models.Platform
	seen := make(map[models.Platform]bool)
	for _, p := range rules[best].Platforms {
		if !allowed[p] || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// Available returns the enabled platforms that can actually act: they hold credentials,
// and gmail additionally needs at least one recipient.
func Available(settings models.PenaltySettings, creds Credentials) []models.Platform {
	var out []models.Platform
	for _, p := range models.AllPlatforms {
		if !settings.IsEnabled(p) || !creds[p] {
			continue
		}
		if p == models.PlatformGmail && len(settings.GmailRecipients) == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Resolve is the full mapping used once a trigger is confirmed. Without any
// progressive rules every available platform acts.
func Resolve(count int, settings models.PenaltySettings, creds Credentials) []models.Platform {
	available := Available(settings, creds)
	if len(settings.ProgressiveRules) == 0 {
		if count <= 0 {
			return nil
		}
		return available
	}
	return ActivePlatforms(count, settings.ProgressiveRules, available)
}

// RulesSorted reports whether thresholds are non-decreasing by position.
func RulesSorted(rules []models.ProgressivePenaltyRule) bool {
	return sort.SliceIsSorted(rules, func(i, j int) bool {
		return rules[i].ViolationCount < rules[j].ViolationCount
	})
}
