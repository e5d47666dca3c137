// Package upstream builds the model and speech backends named by the gateway
// configuration.
package upstream

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vango-go/vai-navigator/pkg/core"
	"github.com/vango-go/vai-navigator/pkg/core/providers/gemini"
	"github.com/vango-go/vai-navigator/pkg/core/providers/groq"
	"github.com/vango-go/vai-navigator/pkg/core/providers/openai"
	"github.com/vango-go/vai-navigator/pkg/core/providers/openrouter"
	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
	"github.com/vango-go/vai-navigator/pkg/gateway/config"
)

type Factory struct {
	HTTPClient *http.Client
}

func (f Factory) client() *http.Client {
	if f.HTTPClient == nil {
		return &http.Client{}
	}
	return f.HTTPClient
}

// NewModel returns the model source for cfg.ModelProvider.
func (f Factory) NewModel(ctx context.Context, cfg config.Config) (core.ModelSource, error) {
	client := f.client()

	switch cfg.ModelProvider {
	case config.ModelProviderOpenAI:
		return openai.New(cfg.OpenAIAPIKey,
			openai.WithBaseURL(cfg.OpenAIBaseURL),
			openai.WithModel(cfg.Model),
			openai.WithMaxTokens(cfg.MaxTokens),
			openai.WithHTTPClient(client),
		), nil
	case config.ModelProviderGroq:
		return groq.New(cfg.GroqAPIKey, groq.WithModel(cfg.Model), groq.WithHTTPClient(client)), nil
	case config.ModelProviderOpenRouter:
		return openrouter.New(cfg.OpenRouterAPIKey, openrouter.WithModel(cfg.Model), openrouter.WithHTTPClient(client)), nil
	case config.ModelProviderGemini:
		p, err := gemini.New(ctx, cfg.GeminiAPIKey,
			gemini.WithModel(cfg.Model),
			gemini.WithMaxTokens(cfg.MaxTokens),
			gemini.WithHTTPClient(client),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.ModelProvider)
	}
}

// NewSynthesizer returns the speech backend for cfg.TTSProvider.
func (f Factory) NewSynthesizer(cfg config.Config) (tts.Synthesizer, error) {
	opts := tts.SynthesizeOptions{Voice: cfg.VoiceID, Model: cfg.TTSModel}

	switch cfg.TTSProvider {
	case config.TTSProviderElevenLabs:
		return tts.NewElevenLabs(cfg.ElevenLabsAPIKey, opts).WithWSBaseURL(cfg.ElevenLabsWSBaseURL), nil
	case config.TTSProviderCartesia:
		return tts.NewCartesia(cfg.CartesiaAPIKey, opts).
			WithBaseURL(cfg.CartesiaBaseURL).
			WithHTTPClient(f.client()), nil
	case config.TTSProviderSilent, "":
		return tts.Silent{}, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTSProvider)
	}
}
