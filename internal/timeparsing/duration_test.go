package timeparsing

import (
	"testing"
	"time"
)

func TestParseCompactOffset(t *testing.T) {
	// Fixed reference time; the time of day must be dropped
	now := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "+1d adds 1 day",
			input: "+1d",
			want:  time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "+2w adds 2 weeks",
			input: "+2w",
			want:  time.Date(2025, 6, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "+3m adds 3 months",
			input: "+3m",
			want:  time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "1y without sign is positive",
			input: "1y",
			want:  time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "-1d subtracts 1 day",
			input: "-1d",
			want:  time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "+0d is today",
			input: "+0d",
			want:  time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		},
		{name: "hours are not a day unit", input: "+6h", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "missing unit", input: "+5", wantErr: true},
		{name: "spaces", input: "+ 1d", wantErr: true},
		{name: "uppercase unit", input: "+1D", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCompactOffset(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCompactOffset(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCompactOffset(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseCompactOffset(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIsCompactOffset(t *testing.T) {
	valid := []string{"+1d", "-2w", "3m", "+10y"}
	invalid := []string{"", "1", "d", "+1h", "tomorrow", "2025-01-01"}
	for _, s := range valid {
		if !IsCompactOffset(s) {
			t.Errorf("IsCompactOffset(%q) = false, want true", s)
		}
	}
	for _, s := range invalid {
		if IsCompactOffset(s) {
			t.Errorf("IsCompactOffset(%q) = true, want false", s)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-02-29", "2024-02-29"},
		{"2024-02-29T23:59:59Z", "2024-02-29"},
		{" 2024-03-01 ", "2024-03-01"},
		{"2024-03-01 08:00:00", "2024-03-01"},
	}
	for _, tt := range tests {
		got, err := ParseDate(tt.input)
		if err != nil {
			t.Fatalf("ParseDate(%q) error: %v", tt.input, err)
		}
		if got.Format("2006-01-02") != tt.want || got.Hour() != 0 || got.Location() != time.UTC {
			t.Errorf("ParseDate(%q) = %v, want %s UTC midnight", tt.input, got, tt.want)
		}
	}
	if _, err := ParseDate("03/01/2024"); err == nil {
		t.Error("ParseDate should reject non-ISO dates")
	}
}

func TestDayArithmetic(t *testing.T) {
	d := time.Date(2024, 2, 28, 15, 0, 0, 0, time.UTC)

	if got := AddDays(d, 1); !got.Equal(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("AddDays leap day = %v", got)
	}
	if got := AddDays(d, 2); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("AddDays across month = %v", got)
	}
	if got := DaysBetween(d, time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)); got != 6 {
		t.Errorf("DaysBetween = %d, want 6", got)
	}
	if got := DaysBetween(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), d); got != -6 {
		t.Errorf("DaysBetween backwards = %d, want -6", got)
	}
	if AddDaysPtr(nil, 3) != nil {
		t.Error("AddDaysPtr(nil) should stay nil")
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)
	c := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	if !SameDay(&a, &b) {
		t.Error("same calendar day should match")
	}
	if SameDay(&a, &c) {
		t.Error("different days should not match")
	}
	if !SameDay(nil, nil) || SameDay(&a, nil) {
		t.Error("nil handling wrong")
	}
}

func TestFixedClock(t *testing.T) {
	c := NewFixedClock(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC))
	if got := c.Today(); !got.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Today() = %v", got)
	}
	c.Advance(3)
	if got := c.Today(); !got.Equal(time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Today() after Advance = %v", got)
	}
}
