package timeparsing

import (
	"testing"
	"time"
)

// TestParseNaturalLanguage tests the NLP parser wrapper.
func TestParseNaturalLanguage(t *testing.T) {
	// Fixed reference time: Wednesday, January 15, 2025, 10:00:00 AM
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		input     string
		wantMonth time.Month
		wantDay   int
		wantErr   bool
	}{
		{name: "tomorrow", input: "tomorrow", wantMonth: time.January, wantDay: 16},
		{name: "yesterday", input: "yesterday", wantMonth: time.January, wantDay: 14},
		{name: "next monday", input: "next monday", wantMonth: time.January, wantDay: 20},
		{name: "time of day is dropped", input: "tomorrow at 9am", wantMonth: time.January, wantDay: 16},
		{name: "gibberish", input: "flurble", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNaturalLanguage(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseNaturalLanguage(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseNaturalLanguage(%q) unexpected error: %v", tt.input, err)
			}
			if got.Year() != 2025 || got.Month() != tt.wantMonth || got.Day() != tt.wantDay {
				t.Errorf("ParseNaturalLanguage(%q) = %v, want 2025-%02d-%02d", tt.input, got, tt.wantMonth, tt.wantDay)
			}
			if got.Hour() != 0 || got.Minute() != 0 {
				t.Errorf("ParseNaturalLanguage(%q) kept a time of day: %v", tt.input, got)
			}
		})
	}
}

// TestParseRelativeDate checks the layering order.
func TestParseRelativeDate(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		want    string // "" means nil
		wantErr bool
	}{
		{input: "", want: ""},
		{input: "none", want: ""},
		{input: "+5d", want: "2025-01-20"},
		{input: "2025-03-01", want: "2025-03-01"},
		{input: "tomorrow", want: "2025-01-16"},
		{input: "flurble zxq", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRelativeDate(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseRelativeDate(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRelativeDate(%q) error: %v", tt.input, err)
			}
			if tt.want == "" {
				if got != nil {
					t.Errorf("ParseRelativeDate(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if got == nil || got.Format("2006-01-02") != tt.want {
				t.Errorf("ParseRelativeDate(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}
