package clock

import "time"

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns a controllable timestamp for tests.
// Params: At holds the reported time.
// Returns: deterministic clock implementation.
type FixedClock struct {
	At time.Time
}

// Now returns the configured timestamp.
// Params: none.
// Returns: the fixed time value.
func (c FixedClock) Now() time.Time {
	return c.At
}
