package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/chacha/pkg/media"
	"github.com/MrWong99/chacha/pkg/provider/llm"
	"github.com/MrWong99/chacha/pkg/speech"
	"github.com/MrWong99/chacha/pkg/vision"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Voice pairs the output and input side of a speech provider. Either side
// may be the same value.
type Voice struct {
	Speaker  speech.Speaker
	Listener speech.Listener
}

// Sight pairs a camera with the detection engine run on its frames.
type Sight struct {
	Camera vision.Camera
	Engine vision.Engine
}

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	llm    map[string]func(ProviderEntry) (llm.Provider, error)
	speech map[string]func(ProviderEntry) (Voice, error)
	vision map[string]func(ProviderEntry) (Sight, error)
	media  map[string]func(ProviderEntry) (media.Backend, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:    make(map[string]func(ProviderEntry) (llm.Provider, error)),
		speech: make(map[string]func(ProviderEntry) (Voice, error)),
		vision: make(map[string]func(ProviderEntry) (Sight, error)),
		media:  make(map[string]func(ProviderEntry) (media.Backend, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSpeech registers a voice I/O factory under name.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (Voice, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterVision registers a camera and engine factory under name.
func (r *Registry) RegisterVision(name string, factory func(ProviderEntry) (Sight, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vision[name] = factory
}

// RegisterMedia registers a music backend factory under name.
func (r *Registry) RegisterMedia(name string, factory func(ProviderEntry) (media.Backend, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media[name] = factory
}

// CreateLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	return create(r, r.llm, "llm", entry)
}

// CreateSpeech instantiates voice I/O using the factory registered under
// entry.Name.
func (r *Registry) CreateSpeech(entry ProviderEntry) (Voice, error) {
	return create(r, r.speech, "speech", entry)
}

// CreateVision instantiates a camera and engine using the factory registered
// under entry.Name.
func (r *Registry) CreateVision(entry ProviderEntry) (Sight, error) {
	return create(r, r.vision, "vision", entry)
}

// CreateMedia instantiates a music backend using the factory registered
// under entry.Name.
func (r *Registry) CreateMedia(entry ProviderEntry) (media.Backend, error) {
	return create(r, r.media, "media", entry)
}

func create[T any](r *Registry, factories map[string]func(ProviderEntry) (T, error), kind string, entry ProviderEntry) (T, error) {
	r.mu.RLock()
	factory, ok := factories[entry.Name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, kind, entry.Name)
	}
	return factory(entry)
}
