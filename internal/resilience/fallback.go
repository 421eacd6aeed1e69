package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Chain] failed or was
// skipped because its breaker was open.
var ErrAllFailed = errors.New("resilience: all backends failed")

type member[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain holds an ordered list of interchangeable backends. Calls go to the
// first member whose breaker admits them; failures move on to the next.
type Chain[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewChain creates a [Chain] with primary as the first member. cfg is the
// template for every member's breaker; its Name is replaced per member.
func NewChain[T any](primaryName string, primary T, cfg BreakerConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback member. Not safe to call concurrently with [Call].
func (c *Chain[T]) Add(name string, value T) {
	bc := c.cfg
	bc.Name = name
	c.members = append(c.members, member[T]{name: name, value: value, breaker: NewBreaker(bc)})
}

// Len returns the number of members.
func (c *Chain[T]) Len() int { return len(c.members) }

// Breakers returns the per-member breakers in order. Used by health checks.
func (c *Chain[T]) Breakers() []*Breaker {
	out := make([]*Breaker, len(c.members))
	for i := range c.members {
		out[i] = c.members[i].breaker
	}
	return out
}

// Call runs fn against each member in order until one succeeds.
func Call[T any, R any](c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for i := range c.members {
		m := &c.members[i]
		out, err := Do(m.breaker, func() (R, error) { return fn(m.value) })
		if err == nil {
			return out, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("backend skipped, circuit open", "backend", m.name)
			continue
		}
		slog.Warn("backend failed, trying next", "backend", m.name, "err", err)
	}
	if lastErr == nil {
		lastErr = errors.New("empty chain")
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
