// Package beep implements media.Backend on github.com/faiface/beep. MP3, WAV
// and Ogg Vorbis files are decoded and resampled to a single speaker rate.
package beep

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"github.com/MrWong99/chacha/pkg/media"
)

var _ media.Backend = (*Backend)(nil)

// SampleRate is the fixed speaker output rate.
const SampleRate = beep.SampleRate(44100)

// Backend drives the system speaker.
type Backend struct {
	mu     sync.Mutex
	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	vol    *effects.Volume
	level  float64
}

// New initialises the speaker with a 100 ms buffer.
func New(volume float64) (*Backend, error) {
	if err := speaker.Init(SampleRate, SampleRate.N(time.Second/10)); err != nil {
		return nil, fmt.Errorf("beep: init speaker: %w", err)
	}
	return &Backend{level: volume}, nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		s, format, err = mp3.Decode(f)
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	default:
		err = fmt.Errorf("unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return s, format, nil
}

// applyLevel maps a linear 0..1 level onto beep's exponential volume.
func applyLevel(v *effects.Volume, level float64) {
	if level <= 0 {
		v.Silent = true
		return
	}
	v.Silent = false
	v.Volume = math.Log2(level)
}

// Play implements media.Backend.
func (b *Backend) Play(path string, onEnd func()) error {
	stream, format, err := decode(path)
	if err != nil {
		return fmt.Errorf("beep: decode %q: %w", filepath.Base(path), err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()

	var src beep.Streamer = stream
	if format.SampleRate != SampleRate {
		src = beep.Resample(4, format.SampleRate, SampleRate, stream)
	}
	b.stream = stream
	b.ctrl = &beep.Ctrl{Streamer: beep.Seq(src, beep.Callback(onEnd))}
	b.vol = &effects.Volume{Streamer: b.ctrl, Base: 2}
	applyLevel(b.vol, b.level)
	speaker.Play(b.vol)
	return nil
}

// clearLocked must be called with b.mu held.
func (b *Backend) clearLocked() {
	speaker.Clear()
	if b.stream != nil {
		b.stream.Close()
	}
	b.stream, b.ctrl, b.vol = nil, nil, nil
}

func (b *Backend) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctrl == nil {
		return nil
	}
	speaker.Lock()
	b.ctrl.Paused = paused
	speaker.Unlock()
	return nil
}

// Pause implements media.Backend.
func (b *Backend) Pause() error { return b.setPaused(true) }

// Resume implements media.Backend.
func (b *Backend) Resume() error { return b.setPaused(false) }

// Stop implements media.Backend.
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	return nil
}

// SetVolume implements media.Backend.
func (b *Backend) SetVolume(level float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
	if b.vol != nil {
		speaker.Lock()
		applyLevel(b.vol, level)
		speaker.Unlock()
	}
	return nil
}

// Close implements media.Backend.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
	speaker.Close()
	return nil
}
