package escalation

import (
	"reflect"
	"testing"

	"github.com/mcdev12/focusguard/go/internal/models"
)

const (
	a = models.PlatformDiscord
	b = models.PlatformGmail
	c = models.PlatformThreads
)

func TestActivePlatforms_TieBreak(t *testing.T) {
	rules := []models.ProgressivePenaltyRule{
		{ViolationCount: 1, Platforms: []models.Platform{a}},
		{ViolationCount: 3, Platforms: []models.Platform{a, b}},
	}
	available := []models.Platform{a, b}

	tests := []struct {
		name  string
		count int
		want  []models.Platform
	}{
		{"no violations", 0, nil},
		{"first threshold", 1, []models.Platform{a}},
		{"between thresholds", 2, []models.Platform{a}},
		{"second threshold", 3, []models.Platform{a, b}},
		{"past last threshold", 10, []models.Platform{a, b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActivePlatforms(tt.count, rules, available)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ActivePlatforms(%d) = %v, want %v", tt.count, got, tt.want)
			}
		})
	}
}

func TestActivePlatforms_DropsUncredentialed(t *testing.T) {
	rules := []models.ProgressivePenaltyRule{
		{ViolationCount: 1, Platforms: []models.Platform{a, c, b, a}},
	}
	got := ActivePlatforms(1, rules, []models.Platform{b, a})
	want := []models.Platform{a, b}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestActivePlatforms_EqualThresholdsPreferLater(t *testing.T) {
	rules := []models.ProgressivePenaltyRule{
		{ViolationCount: 2, Platforms: []models.Platform{a}},
		{ViolationCount: 2, Platforms: []models.Platform{b}},
	}
	got := ActivePlatforms(2, rules, []models.Platform{a, b})
	if !reflect.DeepEqual(got, []models.Platform{b}) {
		t.Fatalf("got %v", got)
	}
}

func TestAvailable(t *testing.T) {
	settings := models.PenaltySettings{
		EnabledPlatforms: []models.Platform{a, b, c},
	}
	creds := Credentials{a: true, b: true, c: false}

	if got := Available(settings, creds); !reflect.DeepEqual(got, []models.Platform{a}) {
		t.Fatalf("gmail without recipients should be excluded, got %v", got)
	}

	settings.GmailRecipients = []string{"me@example.com"}
	if got := Available(settings, creds); !reflect.DeepEqual(got, []models.Platform{a, b}) {
		t.Fatalf("got %v", got)
	}
}

func TestResolve(t *testing.T) {
	settings := models.PenaltySettings{
		EnabledPlatforms: []models.Platform{a, c},
	}
	creds := Credentials{a: true, c: true}

	if got := Resolve(1, settings, creds); !reflect.DeepEqual(got, []models.Platform{a, c}) {
		t.Fatalf("without rules all available platforms act, got %v", got)
	}
	if got := Resolve(0, settings, creds); got != nil {
		t.Fatalf("zero count should resolve to nothing, got %v", got)
	}

	settings.ProgressiveRules = []models.ProgressivePenaltyRule{
		{ViolationCount: 2, Platforms: []models.Platform{c}},
	}
	if got := Resolve(1, settings, creds); got != nil {
		t.Fatalf("below first threshold should be empty, got %v", got)
	}
	if got := Resolve(2, settings, creds); !reflect.DeepEqual(got, []models.Platform{c}) {
		t.Fatalf("got %v", got)
	}
}

func TestRulesSorted(t *testing.T) {
	sorted := []models.ProgressivePenaltyRule{{ViolationCount: 1}, {ViolationCount: 1}, {ViolationCount: 4}}
	if !RulesSorted(sorted) {
		t.Fatal("non-decreasing rules reported unsorted")
	}
	unsorted := []models.ProgressivePenaltyRule{{ViolationCount: 3}, {ViolationCount: 1}}
	if RulesSorted(unsorted) {
		t.Fatal("decreasing rules reported sorted")
	}
}
