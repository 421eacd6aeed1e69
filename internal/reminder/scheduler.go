// Package reminder schedules spoken reminders.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/chacha/internal/observe"
	"github.com/MrWong99/chacha/pkg/speech"
)

// ErrClosed is returned by [Scheduler.Schedule] after Close.
var ErrClosed = errors.New("reminder: scheduler closed")

// Reminder is one pending reminder.
type Reminder struct {
	ID      uuid.UUID
	Message string
	DueAt   time.Time
}

type entry struct {
	Reminder
	timer *time.Timer
}

// Scheduler speaks reminders after their delay. Pending reminders live in
// memory only.
type Scheduler struct {
	speaker speech.Speaker
	metrics *observe.Metrics
	now     func() time.Time

	mu      sync.Mutex
	pending map[uuid.UUID]*entry
	closed  bool
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// NewScheduler returns a Scheduler speaking through speaker.
func NewScheduler(speaker speech.Speaker, opts ...Option) *Scheduler {
	s := &Scheduler{
		speaker: speaker,
		now:     time.Now,
		pending: make(map[uuid.UUID]*entry),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Schedule arranges for "Yaad dilana: <message>" to be spoken after delay.
func (s *Scheduler) Schedule(delay time.Duration, message string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return uuid.Nil, ErrClosed
	}

	id := uuid.New()
	e := &entry{Reminder: Reminder{ID: id, Message: message, DueAt: s.now().Add(delay)}}
	e.timer = time.AfterFunc(delay, func() { s.fire(id) })
	s.pending[id] = e
	s.metrics.RecordReminder(context.Background(), "scheduled")
	return id, nil
}

func (s *Scheduler) fire(id uuid.UUID) {
	s.mu.Lock()
	e, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	ctx := context.Background()
	s.metrics.RecordReminder(ctx, "fired")
	if err := s.speaker.Speak(ctx, fmt.Sprintf("Yaad dilana: %s", e.Message)); err != nil {
		observe.Logger(ctx).Warn("reminder: speak failed", "id", id, "err", err)
	}
}

// Cancel removes a pending reminder. It reports whether one was removed.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pending[id]
	if !ok {
		return false
	}
	// A timer that already fired finds its entry gone and stays silent.
	e.timer.Stop()
	delete(s.pending, id)
	s.metrics.RecordReminder(context.Background(), "cancelled")
	return true
}

// Pending returns the waiting reminders ordered by due time.
func (s *Scheduler) Pending() []Reminder {
	s.mu.Lock()
	out := make([]Reminder, 0, len(s.pending))
	for _, e := range s.pending {
		out = append(out, e.Reminder)
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b Reminder) int { return a.DueAt.Compare(b.DueAt) })
	return out
}

// Close cancels every pending reminder. Later calls to Schedule fail.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, e := range s.pending {
		e.timer.Stop()
		delete(s.pending, id)
		s.metrics.RecordReminder(context.Background(), "cancelled")
	}
	return nil
}
