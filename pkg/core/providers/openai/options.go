package openai

import (
	"net/http"
	"strings"
)

// Option configures the OpenAI provider.
type Option func(*Provider)

// WithBaseURL sets a custom base URL (for testing or compatible backends).
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url == "" {
			return
		}
		p.baseURL = url
	}
}

// WithChatCompletionsPath sets a custom chat completions path.
func WithChatCompletionsPath(path string) Option {
	return func(p *Provider) {
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		p.chatCompletionsPath = path
	}
}

// WithModel sets the model name sent with every pass.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model == "" {
			return
		}
		p.model = model
	}
}

// WithMaxTokens sets the per-pass completion budget.
func WithMaxTokens(n int) Option {
	return func(p *Provider) {
		if n <= 0 {
			return
		}
		p.maxTokens = n
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client == nil {
			return
		}
		p.httpClient = client
	}
}

// WithExtraHeader sets one additional request header.
func WithExtraHeader(key, value string) Option {
	return func(p *Provider) {
		if key == "" {
			return
		}
		if p.extraHeaders == nil {
			p.extraHeaders = make(map[string]string)
		}
		p.extraHeaders[key] = value
	}
}

// WithName sets the backend name reported by Name and in errors. Wrappers for
// compatible APIs use it so failures name the real backend.
func WithName(name string) Option {
	return func(p *Provider) {
		if name == "" {
			return
		}
		p.name = name
	}
}
