// Package media implements the assistant's music player: a lazily built,
// shuffled playlist from a flat directory with play/pause/resume/stop/next,
// volume, and automatic advance when a track ends on its own.
//
// Audio output is delegated to a [Backend]; package beep provides the real
// one.
package media

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
)

// ErrEmptyPlaylist is returned when the music directory holds no playable
// tracks.
var ErrEmptyPlaylist = errors.New("media: no tracks found")

// DefaultVolume is the initial output level.
const DefaultVolume = 0.7

// Backend plays one track at a time.
type Backend interface {
	// Play starts path from the beginning, replacing whatever was playing.
	// onEnd fires once if the track runs to completion; it does not fire
	// after Stop or a subsequent Play. onEnd may be called from an audio
	// goroutine and must not block.
	Play(path string, onEnd func()) error
	Pause() error
	Resume() error
	Stop() error
	SetVolume(level float64) error
	Close() error
}

// Controls is the player surface the command router drives.
type Controls interface {
	// Play starts track index, or continues the current track when index < 0.
	Play(index int) error
	Pause() error
	Resume() error
	Stop() error
	Next() error
	SetVolume(level float64) error
}

var _ Controls = (*Player)(nil)

// Status is a snapshot of playback state.
type Status struct {
	Track   string
	Index   int
	Tracks  int
	Playing bool
	Paused  bool
	Stopped bool
	Volume  float64
}

// Player owns the playlist and playback flags.
type Player struct {
	backend Backend
	scan    func() ([]string, error)
	shuffle func([]string)

	mu       sync.Mutex
	playlist []string
	index    int
	playing  bool
	paused   bool
	stopped  bool
	volume   float64
	gen      uint64
}

// Option configures a [Player].
type Option func(*Player)

// WithScanner replaces the directory scan. Tests only.
func WithScanner(scan func() ([]string, error)) Option {
	return func(p *Player) { p.scan = scan }
}

// WithShuffle replaces the playlist shuffle. Tests only.
func WithShuffle(fn func([]string)) Option {
	return func(p *Player) { p.shuffle = fn }
}

// NewPlayer creates a Player over the tracks in dir with the given extensions.
func NewPlayer(backend Backend, dir string, exts []string, opts ...Option) *Player {
	p := &Player{
		backend: backend,
		scan:    func() ([]string, error) { return ScanDir(dir, exts) },
		shuffle: Shuffle,
		index:   -1,
		volume:  DefaultVolume,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ensurePlaylist must be called with p.mu held.
func (p *Player) ensurePlaylist() error {
	if len(p.playlist) > 0 {
		return nil
	}
	tracks, err := p.scan()
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		return ErrEmptyPlaylist
	}
	p.shuffle(tracks)
	p.playlist = tracks
	slog.Info("playlist ready", "tracks", len(tracks))
	return nil
}

// Play implements [Controls].
func (p *Player) Play(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked(index)
}

func (p *Player) playLocked(index int) error {
	if err := p.ensurePlaylist(); err != nil {
		return err
	}
	if index < 0 {
		index = max(p.index, 0)
	}
	index = min(index, len(p.playlist)-1)
	track := p.playlist[index]

	p.gen++
	gen := p.gen
	if err := p.backend.Play(track, func() { go p.trackEnded(gen) }); err != nil {
		return fmt.Errorf("media: play %q: %w", filepath.Base(track), err)
	}
	p.index = index
	p.playing = true
	p.paused = false
	p.stopped = false
	slog.Info("now playing", "track", filepath.Base(track), "index", index)
	return nil
}

func (p *Player) trackEnded(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return
	}
	p.playing = false
	if p.paused || p.stopped || len(p.playlist) == 0 {
		return
	}
	if err := p.playLocked((p.index + 1) % len(p.playlist)); err != nil {
		slog.Warn("auto-advance failed", "err", err)
	}
}

// Next implements [Controls].
func (p *Player) Next() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ensurePlaylist(); err != nil {
		return err
	}
	return p.playLocked((p.index + 1) % len(p.playlist))
}

// Pause implements [Controls]. Pausing twice is a no-op.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return nil
	}
	if err := p.backend.Pause(); err != nil {
		return fmt.Errorf("media: pause: %w", err)
	}
	p.paused = true
	return nil
}

// Resume implements [Controls]. With nothing paused and nothing playing it
// restarts the current track.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		if err := p.backend.Resume(); err != nil {
			return fmt.Errorf("media: resume: %w", err)
		}
		p.paused = false
		return nil
	}
	if !p.playing {
		return p.playLocked(p.index)
	}
	return nil
}

// Stop implements [Controls]. Stopping suppresses auto-advance.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil
	}
	p.stopped = true
	p.playing = false
	p.paused = false
	p.gen++
	if err := p.backend.Stop(); err != nil {
		return fmt.Errorf("media: stop: %w", err)
	}
	return nil
}

// SetVolume implements [Controls]. level is clamped to [0,1].
func (p *Player) SetVolume(level float64) error {
	level = min(max(level, 0), 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.backend.SetVolume(level); err != nil {
		return fmt.Errorf("media: set volume: %w", err)
	}
	p.volume = level
	return nil
}

// Status returns a snapshot of the player.
func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Status{
		Index:   p.index,
		Tracks:  len(p.playlist),
		Playing: p.playing,
		Paused:  p.paused,
		Stopped: p.stopped,
		Volume:  p.volume,
	}
	if p.index >= 0 && p.index < len(p.playlist) {
		s.Track = filepath.Base(p.playlist[p.index])
	}
	return s
}

// Close stops playback and releases the backend.
func (p *Player) Close() error {
	p.mu.Lock()
	p.gen++
	p.playing = false
	p.mu.Unlock()
	return p.backend.Close()
}
