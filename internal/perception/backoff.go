package perception

import "time"

// backoff is an exponential retry delay. Not safe for concurrent use; each
// capture goroutine owns one.
type backoff struct {
	initial, limit, current time.Duration
}

func newBackoff(initial, limit time.Duration) *backoff {
	return &backoff{initial: initial, limit: limit, current: initial}
}

// next returns the current delay and doubles it up to the limit.
func (b *backoff) next() time.Duration {
	d := b.current
	b.current = min(2*b.current, b.limit)
	return d
}

func (b *backoff) reset() { b.current = b.initial }
