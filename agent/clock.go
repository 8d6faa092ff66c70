package agent

import "time"

// Clock abstracts time for the agent so tests can drive refresh scheduling
// deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for the duration to elapse and then calls f in its
	// own goroutine. It returns a Timer that can be used to cancel the
	// call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the cancellation handle returned by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the Timer from firing. It returns false if the timer
	// has already fired or been stopped.
	Stop() bool
}

// realClock is the default Clock, backed by the time package.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
