// Package clock isolates "now" so the time-windowed rules (duplicate window,
// confidence clustering, age bonuses, escalation persistence) can be tested
// without sleeping.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock returns the system time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// FuncClock adapts a function to Clock.
type FuncClock func() time.Time

func (f FuncClock) Now() time.Time {
	return f()
}

// NewReal returns the system clock. Only cmd/ should construct it.
func NewReal() Clock {
	return RealClock{}
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

// NewFunc returns a clock backed by f.
func NewFunc(f func() time.Time) Clock {
	return FuncClock(f)
}
