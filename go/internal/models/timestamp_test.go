package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "utc", raw: "2026-03-01T09:00:00Z", want: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{name: "offset", raw: "2026-03-01T10:00:00+01:00", want: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)},
		{name: "naive", raw: "2026-03-01T09:00:00", want: time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)},
		{name: "naive fraction", raw: "2026-03-01T09:00:00.250000", want: time.Date(2026, 3, 1, 9, 0, 0, 250_000_000, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.raw)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.raw, err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("ParseTimestamp(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestTimestampNullAndEmpty(t *testing.T) {
	var s Session
	if err := json.Unmarshal([]byte(`{"id":"s","start_time":null,"paused_at":""}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.StartTime != nil {
		t.Fatalf("start_time = %v, want nil", s.StartTime)
	}
	if s.PausedAt == nil || !s.PausedAt.IsZero() {
		t.Fatalf("paused_at = %v, want zero", s.PausedAt)
	}
}
