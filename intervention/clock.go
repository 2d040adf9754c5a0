package intervention

import "time"

// Timer is a handle to an armed callback, grounded on the core's external
// clock collaborator (§6: "a clock: monotonic now() and a
// setTimer(duration, callback) -> handle; cancel(handle)").
type Timer interface {
	// Stop disarms the timer. It returns false if the timer had already
	// fired or been stopped.
	Stop() bool
}

// Clock abstracts time so tests can control timeout firing deterministically
// instead of sleeping in real time.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is the production Clock, backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return stdTimer{time.AfterFunc(d, f)}
}

type stdTimer struct{ t *time.Timer }

func (s stdTimer) Stop() bool { return s.t.Stop() }
