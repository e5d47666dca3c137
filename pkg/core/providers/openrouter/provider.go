// Package openrouter streams agent passes through OpenRouter.
// OpenRouter is an OpenAI-compatible API that routes across many model providers.
package openrouter

import (
	"context"
	"net/http"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/providers/openai"
)

const (
	// DefaultBaseURL is the OpenRouter API endpoint.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "openai/gpt-4o-mini"
)

// Provider implements core.ModelSource for OpenRouter.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	siteURL    string
	siteName   string
	inner      *openai.Provider
}

var _ core.ModelSource = (*Provider)(nil)

// New creates a new OpenRouter provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}

	openaiOpts := []openai.Option{
		openai.WithName("openrouter"),
		openai.WithBaseURL(p.baseURL),
		openai.WithModel(p.model),
		openai.WithHTTPClient(p.httpClient),
	}
	if p.siteURL != "" {
		openaiOpts = append(openaiOpts, openai.WithExtraHeader("HTTP-Referer", p.siteURL))
	}
	if p.siteName != "" {
		openaiOpts = append(openaiOpts, openai.WithExtraHeader("X-Title", p.siteName))
	}

	p.inner = openai.New(apiKey, openaiOpts...)
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "openrouter"
}

// StreamPass streams one pass through OpenRouter.
func (p *Provider) StreamPass(ctx context.Context, req *core.PassRequest) (core.UnitStream, error) {
	return p.inner.StreamPass(ctx, req)
}
