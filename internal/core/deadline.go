package core

import (
	"context"
	"time"
)

// Deadline is the absolute instant after which traversal phases stop making
// forward progress. The zero value never expires.
type Deadline struct {
	at  time.Time
	now func() time.Time
}

// NewDeadline returns a deadline budget from now. A non-positive budget
// yields a deadline that never expires.
func NewDeadline(budget time.Duration) Deadline {
	if budget <= 0 {
		return Deadline{}
	}
	return Deadline{at: time.Now().Add(budget)}
}

// DeadlineAt returns a deadline at t. now may be nil, in which case the wall
// clock is used; tests pass a fake clock.
func DeadlineAt(t time.Time, now func() time.Time) Deadline {
	return Deadline{at: t, now: now}
}

func (d Deadline) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// IsZero reports whether the deadline is unbounded.
func (d Deadline) IsZero() bool {
	return d.at.IsZero()
}

// At returns the absolute instant, or the zero time when unbounded.
func (d Deadline) At() time.Time {
	return d.at
}

// Expired reports whether now is past the deadline.
func (d Deadline) Expired() bool {
	if d.at.IsZero() {
		return false
	}
	return d.clock().After(d.at)
}

// Remaining returns the time left, clamped at zero. Unbounded deadlines
// report a large positive duration.
func (d Deadline) Remaining() time.Duration {
	if d.at.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	left := d.at.Sub(d.clock())
	if left < 0 {
		return 0
	}
	return left
}

// Bound derives a context that is cancelled at the earlier of the deadline
// and limit from now. A non-positive limit means only the deadline applies.
func (d Deadline) Bound(parent context.Context, limit time.Duration) (context.Context, context.CancelFunc) {
	timeout := d.Remaining()
	if limit > 0 && limit < timeout {
		timeout = limit
	}
	if d.at.IsZero() && limit <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
