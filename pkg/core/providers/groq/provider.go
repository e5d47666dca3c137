// Package groq streams agent passes from Groq.
// Groq uses an OpenAI-compatible API, so this provider wraps the OpenAI provider
// with a different base URL.
package groq

import (
	"context"
	"net/http"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/providers/openai"
)

const (
	// DefaultBaseURL is the Groq API endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"

	// DefaultModel favors low first-token latency for voice.
	DefaultModel = "llama-3.3-70b-versatile"
)

// Provider implements core.ModelSource for Groq.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	inner      *openai.Provider
}

var _ core.ModelSource = (*Provider)(nil)

// New creates a new Groq provider.
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

	p.inner = openai.New(apiKey,
		openai.WithName("groq"),
		openai.WithBaseURL(p.baseURL),
		openai.WithModel(p.model),
		openai.WithHTTPClient(p.httpClient),
	)

	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "groq"
}

// StreamPass streams one pass through the OpenAI-compatible endpoint.
func (p *Provider) StreamPass(ctx context.Context, req *core.PassRequest) (core.UnitStream, error) {
	return p.inner.StreamPass(ctx, req)
}
