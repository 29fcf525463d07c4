// Package timeparsing provides whole-day date arithmetic and layered parsing
// for the dates attached to work items.
//
// Parsing is layered:
//  1. Compact offset (+3d, -1w, +2m)
//  2. Absolute date (2006-01-02, RFC3339)
//  3. Natural language (tomorrow, next monday)
//
// Every parsed value is truncated to UTC midnight; schedules have no time of day.
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactOffsetRe matches compact offset patterns: [+-]?(\d+)([dwmy])
// Examples: +3d, -1w, 2m, 1y
var compactOffsetRe = regexp.MustCompile(`^([+-]?)(\d+)([dwmy])$`)

var (
	nlpOnce   sync.Once
	nlpParser *when.Parser
)

func naturalParser() *when.Parser {
	nlpOnce.Do(func() {
		nlpParser = when.New(nil)
		nlpParser.Add(en.All...)
		nlpParser.Add(common.All...)
	})
	return nlpParser
}

// ParseCompactOffset parses compact offset syntax relative to now.
//
// Units:
//   - d = days
//   - w = weeks
//   - m = months
//   - y = years
//
// Examples:
//   - "+3d" -> today + 3 days
//   - "-1w" -> today - 7 days
//   - "2m"  -> today + 2 months (no sign = positive)
func ParseCompactOffset(s string, now time.Time) (time.Time, error) {
	matches := compactOffsetRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact offset: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid offset amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	return applyOffset(TruncateDay(now), amount, matches[3]), nil
}

func applyOffset(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "m":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}

// IsCompactOffset returns true if the string matches compact offset syntax.
func IsCompactOffset(s string) bool {
	return compactOffsetRe.MatchString(s)
}

// ParseDate parses an absolute date. Date-only and RFC3339 inputs are accepted.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layouts := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDay(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %q", s)
}

// ParseNaturalLanguage parses phrases such as "tomorrow" or "next friday".
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	r, err := naturalParser().Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("no date found in %q", s)
	}
	return TruncateDay(r.Time), nil
}

// ParseRelativeDate tries each layer in order and returns the first match.
// An empty string or "none" yields nil so callers can clear a date.
func ParseRelativeDate(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return nil, nil
	}
	if IsCompactOffset(s) {
		t, err := ParseCompactOffset(s, now)
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	if t, err := ParseDate(s); err == nil {
		return &t, nil
	}
	t, err := ParseNaturalLanguage(s, now)
	if err != nil {
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	return &t, nil
}
