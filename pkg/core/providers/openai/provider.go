// Package openai streams agent passes from an OpenAI-compatible Chat Completions API.
package openai

import (
	"context"
	"net/http"

	"github.com/vango-go/vai-navigator/pkg/core"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens is the default completion budget per pass.
	DefaultMaxTokens = 1024
)

// Provider implements core.ModelSource over the Chat Completions API.
type Provider struct {
	name                string
	apiKey              string
	baseURL             string
	chatCompletionsPath string
	model               string
	maxTokens           int
	httpClient          *http.Client
	extraHeaders        map[string]string
}

var _ core.ModelSource = (*Provider)(nil)

// New creates a new OpenAI provider.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		name:                "openai",
		apiKey:              apiKey,
		baseURL:             DefaultBaseURL,
		chatCompletionsPath: "/chat/completions",
		model:               DefaultModel,
		maxTokens:           DefaultMaxTokens,
		httpClient:          &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// StreamPass sends a streaming chat completion for one agent pass.
func (p *Provider) StreamPass(ctx context.Context, req *core.PassRequest) (core.UnitStream, error) {
	chatReq := p.buildRequest(req)
	body, err := p.doStreamRequest(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	return newUnitStream(body), nil
}
