package embedding

import (
	"context"

	"github.com/rs/zerolog"
)

// Provider generates vector embeddings from text
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// FallbackProvider wraps a remote provider with a deterministic local
// fallback. Remote failures degrade to the fallback and are never
// propagated to the caller.
type FallbackProvider struct {
	remote   Provider
	fallback *HashProvider
	logger   zerolog.Logger
}

// NewFallbackProvider creates a provider that prefers remote embeddings.
// A nil remote means the fallback is used exclusively.
func NewFallbackProvider(remote Provider, dimension int, logger zerolog.Logger) *FallbackProvider {
	return &FallbackProvider{
		remote:   remote,
		fallback: NewHashProvider(dimension),
		logger:   logger,
	}
}

func (p *FallbackProvider) Dimension() int {
	return p.fallback.Dimension()
}

func (p *FallbackProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.remote != nil {
		vec, err := p.remote.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		p.logger.Warn().Err(err).Msg("Remote embedding failed, using deterministic fallback")
	}
	return p.fallback.Embed(ctx, text)
}
