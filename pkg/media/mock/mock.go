// Package mock provides test doubles for media.Backend and media.Controls.
package mock

import (
	"sync"

	"github.com/MrWong99/chacha/pkg/media"
)

// Backend records calls and lets a test finish the current track.
type Backend struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play.
	PlayErr error

	// Played lists every path passed to Play.
	Played []string

	Pauses, Resumes, Stops int
	Volume                 float64
	Closed                 bool

	onEnd func()
}

// Play implements media.Backend.
func (b *Backend) Play(path string, onEnd func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.PlayErr != nil {
		return b.PlayErr
	}
	b.Played = append(b.Played, path)
	b.onEnd = onEnd
	return nil
}

// Finish simulates the current track reaching its natural end.
func (b *Backend) Finish() {
	b.mu.Lock()
	fn := b.onEnd
	b.onEnd = nil
	b.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// EndFunc returns the end callback of the current track, or a no-op.
func (b *Backend) EndFunc() func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.onEnd == nil {
		return func() {}
	}
	return b.onEnd
}

// PlayedCount returns len(Played).
func (b *Backend) PlayedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.Played)
}

// LastPlayed returns the most recent path or "".
func (b *Backend) LastPlayed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.Played) == 0 {
		return ""
	}
	return b.Played[len(b.Played)-1]
}

// Pause implements media.Backend.
func (b *Backend) Pause() error {
	b.mu.Lock()
	b.Pauses++
	b.mu.Unlock()
	return nil
}

// Resume implements media.Backend.
func (b *Backend) Resume() error {
	b.mu.Lock()
	b.Resumes++
	b.mu.Unlock()
	return nil
}

// Stop implements media.Backend.
func (b *Backend) Stop() error {
	b.mu.Lock()
	b.Stops++
	b.onEnd = nil
	b.mu.Unlock()
	return nil
}

// SetVolume implements media.Backend.
func (b *Backend) SetVolume(level float64) error {
	b.mu.Lock()
	b.Volume = level
	b.mu.Unlock()
	return nil
}

// Close implements media.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	b.Closed = true
	b.mu.Unlock()
	return nil
}

// Controls records router-level player commands.
type Controls struct {
	mu sync.Mutex

	// Err, if non-nil, is returned from every call.
	Err error

	// Calls lists method names in order, e.g. "play", "pause", "volume".
	Calls []string

	// PlayIndex is the last index passed to Play.
	PlayIndex int

	// Volume is the last level passed to SetVolume.
	Volume float64
}

func (c *Controls) record(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, name)
	return c.Err
}

// Play implements media.Controls.
func (c *Controls) Play(index int) error {
	c.mu.Lock()
	c.PlayIndex = index
	c.mu.Unlock()
	return c.record("play")
}

// Pause implements media.Controls.
func (c *Controls) Pause() error { return c.record("pause") }

// Resume implements media.Controls.
func (c *Controls) Resume() error { return c.record("resume") }

// Stop implements media.Controls.
func (c *Controls) Stop() error { return c.record("stop") }

// Next implements media.Controls.
func (c *Controls) Next() error { return c.record("next") }

// SetVolume implements media.Controls.
func (c *Controls) SetVolume(level float64) error {
	c.mu.Lock()
	c.Volume = level
	c.mu.Unlock()
	return c.record("volume")
}

// Recorded returns a copy of Calls.
func (c *Controls) Recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.Calls...)
}

var (
	_ media.Backend  = (*Backend)(nil)
	_ media.Controls = (*Controls)(nil)
)
