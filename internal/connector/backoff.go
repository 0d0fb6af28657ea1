package connector

import "time"

// Default reconnect backoff bounds.
const (
	DefaultRetryInitial = time.Second
	DefaultRetryMax     = 2 * time.Minute
)

// Backoff yields exponentially growing delays: Initial, then doubling up to
// Max. Reset starts over. Not safe for concurrent use.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

// Next returns the next delay.
func (b *Backoff) Next() time.Duration {
	initial, limit := b.Initial, b.Max
	if initial <= 0 {
		initial = DefaultRetryInitial
	}
	if limit < initial {
		limit = initial
	}

	if b.current == 0 {
		b.current = initial
	} else {
		b.current *= 2
		if b.current > limit {
			b.current = limit
		}
	}
	return b.current
}

// Reset makes the next delay Initial again.
func (b *Backoff) Reset() {
	b.current = 0
}
