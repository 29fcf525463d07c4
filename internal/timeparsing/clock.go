package timeparsing

import (
	"sync"
	"time"
)

// Clock supplies the current day. Propagation never reads wall time directly
// so tests can pin "today".
type Clock interface {
	Now() time.Time
	Today() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

func (SystemClock) Today() time.Time { return TruncateDay(time.Now()) }

// FixedClock always reports the same instant. Safe for concurrent use.
type FixedClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t.UTC()}
}

func (c *FixedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

func (c *FixedClock) Today() time.Time {
	return TruncateDay(c.Now())
}

// Advance moves the clock forward by the given number of days.
func (c *FixedClock) Advance(days int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.AddDate(0, 0, days)
}

// TruncateDay returns UTC midnight of the calendar day t falls on in its own location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts a whole-day date by n days.
func AddDays(t time.Time, n int) time.Time {
	return TruncateDay(t).AddDate(0, 0, n)
}

// AddDaysPtr is AddDays for optional dates; nil stays nil.
func AddDaysPtr(t *time.Time, n int) *time.Time {
	if t == nil {
		return nil
	}
	r := AddDays(*t, n)
	return &r
}

// DaysBetween returns the whole days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(TruncateDay(b).Sub(TruncateDay(a)).Hours() / 24)
}

// SameDay reports whether two optional dates denote the same day (or are both nil).
func SameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return TruncateDay(*a).Equal(TruncateDay(*b))
}
