package resilience

import (
	"context"

	"github.com/MrWong99/chacha/pkg/provider/llm"
)

// LLMChain implements [llm.Provider] with failover across several backends.
type LLMChain struct {
	*Chain[llm.Provider]
}

var _ llm.Provider = (*LLMChain)(nil)

// NewLLMChain creates an [LLMChain] with primary as the preferred backend.
func NewLLMChain(primaryName string, primary llm.Provider, cfg BreakerConfig) *LLMChain {
	return &LLMChain{Chain: NewChain(primaryName, primary, cfg)}
}

// Complete sends req to the first healthy backend.
func (c *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return Call(c.Chain, func(p llm.Provider) (*llm.CompletionResponse, error) {
		return p.Complete(ctx, req)
	})
}
