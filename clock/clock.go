// Package clock provides the time source used by the token subsystem. All
// instants handed out or accepted here are UTC; storage drivers that round-trip
// timestamps without offset information are normalized through EnsureUTC before
// any comparison.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// System returns a Clock backed by the wall clock, always in UTC.
func System() Clock {
	return systemClock{}
}

// Fixed is a Clock pinned to a settable instant, for tests.
type Fixed struct {
	Instant time.Time
}

func (f *Fixed) Now() time.Time {
	return EnsureUTC(f.Instant)
}

func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}

// EnsureUTC normalizes t for comparison. Offset-aware values are converted to
// UTC; values that came back from storage without location information are
// interpreted as UTC, which is the only zone the store ever writes. Idempotent.
func EnsureUTC(t time.Time) time.Time {
	if t.Location() == time.UTC {
		return t
	}
	return t.UTC()
}
