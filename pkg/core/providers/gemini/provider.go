// Package gemini streams agent passes from the Google Gemini API through the
// official genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"google.golang.org/genai"

	"github.com/vango-go/vai-navigator/pkg/core"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.5-flash"

	// DefaultMaxTokens is the default completion budget per pass.
	DefaultMaxTokens = 1024
)

// Provider implements core.ModelSource over the Gemini API.
type Provider struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

var _ core.ModelSource = (*Provider)(nil)

// Option configures the Provider.
type Option func(*options)

type options struct {
	model      string
	maxTokens  int32
	baseURL    string
	httpClient *http.Client
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithMaxTokens sets the per-pass output budget.
func WithMaxTokens(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTokens = int32(n)
		}
	}
}

// WithBaseURL overrides the API endpoint (for testing or proxying).
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient sets the HTTP client used by the SDK.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// New creates a Gemini provider.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	o := options{model: DefaultModel, maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	}
	if o.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: o.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Provider{client: client, model: o.model, maxTokens: o.maxTokens}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "gemini"
}

// StreamPass starts a streaming generation for one agent pass.
func (p *Provider) StreamPass(ctx context.Context, req *core.PassRequest) (core.UnitStream, error) {
	contents, err := buildContents(req.Messages)
	if err != nil {
		return nil, err
	}
	config := buildConfig(req, p.maxTokens)
	seq := p.client.Models.GenerateContentStream(ctx, p.model, contents, config)
	next, stop := iter.Pull2(seq)
	return &unitStream{next: next, stop: stop}, nil
}

// mapError converts SDK errors into core errors.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		out := core.NewHTTPError("gemini", apiErr.Code, apiErr.Message)
		out.ProviderError = err
		return out
	}
	return err
}
