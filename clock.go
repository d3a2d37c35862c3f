package study

import "time"

// NowFunc supplies the current time to every time-dependent code path.
// Handlers resolve it from the request so tests can pin the clock.
type NowFunc func() time.Time

// UTCNow is the production NowFunc.
func UTCNow() time.Time {
	return time.Now().UTC()
}

// FixedNow returns a NowFunc frozen at t.
func FixedNow(t time.Time) NowFunc {
	return func() time.Time { return t }
}
