package embedding

import (
	"context"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/sourcevault/ragvault/internal/config"
)

// Provider satisfies interfaces.EmbeddingProvider, delegating to a remote
// HTTP embedder when configured and otherwise to the deterministic local
// fallback. Mirrors the teacher's IsAvailable-gated fallback in
// embedding_service.go, but decides once at construction time rather than
// probing per call, since the spec requires a stable provider identity for
// the lifetime of a run.
type Provider struct {
	remote *RemoteProvider
	local  *LocalProvider
}

// New builds a Provider from the effective configuration. When
// cfg.Embedding.Provider is "local" or cfg.Embedding.APIURL is empty, the
// provider runs entirely on the deterministic local fallback.
func New(cfg *config.Config, logger arbor.ILogger) *Provider {
	dim := cfg.Database.EmbeddingDim
	p := &Provider{local: NewLocalProvider(dim)}
	if cfg.Embedding.Provider == "remote" && cfg.Embedding.APIURL != "" {
		var limiter *rate.Limiter
		if cfg.Embedding.RateLimitPerSecond > 0 {
			limiter = rate.NewLimiter(rate.Limit(cfg.Embedding.RateLimitPerSecond), cfg.Embedding.RateLimitPerSecond)
		}
		p.remote = NewRemoteProvider(cfg.Embedding.APIURL, cfg.APIKey(), cfg.Embedding.Model, dim, cfg.Embedding.BatchSize, limiter, logger)
	}
	return p
}

// Dimension returns the embedding dimension this provider produces.
func (p *Provider) Dimension() int {
	if p.remote != nil {
		return p.remote.Dimension()
	}
	return p.local.Dimension()
}

// Embed embeds texts through the remote provider if configured, falling
// back to the deterministic local embedder otherwise. It never silently
// switches providers mid-run: once remote is configured, remote failures
// surface as errors rather than falling back, so callers get consistent
// embeddings for a given corpus.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if p.remote != nil {
		return p.remote.Embed(ctx, texts)
	}
	return p.local.Embed(ctx, texts)
}
