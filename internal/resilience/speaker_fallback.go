package resilience

import (
	"context"

	"github.com/MrWong99/chacha/pkg/speech"
)

// SpeakerChain implements [speech.Speaker] with failover, so a broken
// synthesiser degrades to the next voice instead of going silent.
type SpeakerChain struct {
	*Chain[speech.Speaker]
}

var _ speech.Speaker = (*SpeakerChain)(nil)

// NewSpeakerChain creates a [SpeakerChain] with primary as the preferred voice.
func NewSpeakerChain(primaryName string, primary speech.Speaker, cfg BreakerConfig) *SpeakerChain {
	return &SpeakerChain{Chain: NewChain(primaryName, primary, cfg)}
}

// Speak says text on the first healthy speaker.
func (c *SpeakerChain) Speak(ctx context.Context, text string) error {
	_, err := Call(c.Chain, func(s speech.Speaker) (struct{}, error) {
		return struct{}{}, s.Speak(ctx, text)
	})
	return err
}
