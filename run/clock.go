package run

import "time"

// Clock schedules the escalation timers. The seam exists so tests can drive
// escalation deterministically; production code uses the wall clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is an armed escalation step. Stop reports whether it was stopped
// before firing.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall-clock scheduler.
func RealClock() Clock { return realClock{} }
