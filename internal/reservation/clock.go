package reservation

import "time"

// Clock is the engine's time source.  All expiry decisions go through it
// so tests can move time explicitly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
