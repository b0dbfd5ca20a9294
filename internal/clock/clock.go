// Package clock abstracts wall time so timers can be driven
// deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package the portal depends on.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f once d has elapsed, unless the returned Timer is
	// stopped first.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the call. It returns false if the call already fired or
// was stopped.
func (t *Timer) Stop() bool { return t.stopFunc() }

// Reset reschedules the call to run d from now.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }
