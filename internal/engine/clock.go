package engine

import "time"

// Clock abstracts the time source so the timer-driven state machine can
// be tested without sleeping.  The production implementation delegates
// to the standard time package.
type Clock interface {
    // Now returns the current time.
    Now() time.Time

    // AfterFunc schedules f to run in its own goroutine after d and
    // returns a handle that can stop the call before it fires.
    AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the stoppable handle returned by Clock.AfterFunc.
type Timer interface {
    // Stop prevents the timer from firing.  It returns true if the call
    // stopped the timer, false if it already fired or was stopped.
    Stop() bool
}

type standardClock struct{}

// NewStandardClock returns a Clock backed by the standard time package.
func NewStandardClock() Clock { return standardClock{} }

func (standardClock) Now() time.Time { return time.Now() }

func (standardClock) AfterFunc(d time.Duration, f func()) Timer {
    return time.AfterFunc(d, f)
}
