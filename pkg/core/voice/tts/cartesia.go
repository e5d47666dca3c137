package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vango-go/vai-navigator/pkg/core"
)

const (
	cartesiaBaseURL      = "https://api.cartesia.ai"
	cartesiaVersion      = "2025-04-16"
	cartesiaDefaultModel = "sonic-3"
	cartesiaReadSize     = 4096
)

// Cartesia synthesizes each span with one streaming /tts/bytes request.
type Cartesia struct {
	apiKey     string
	baseURL    string
	opts       SynthesizeOptions
	httpClient *http.Client
}

var _ Synthesizer = (*Cartesia)(nil)

// NewCartesia creates a Cartesia synthesizer.
func NewCartesia(apiKey string, opts SynthesizeOptions) *Cartesia {
	return &Cartesia{
		apiKey:     apiKey,
		baseURL:    cartesiaBaseURL,
		opts:       opts,
		httpClient: &http.Client{},
	}
}

// WithBaseURL overrides the API endpoint.
func (c *Cartesia) WithBaseURL(base string) *Cartesia {
	base = strings.TrimSpace(base)
	if base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	return c
}

// WithHTTPClient sets a custom HTTP client.
func (c *Cartesia) WithHTTPClient(client *http.Client) *Cartesia {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Name returns the provider identifier.
func (c *Cartesia) Name() string {
	return "cartesia"
}

type cartesiaTTSRequest struct {
	ModelID          string                    `json:"model_id"`
	Transcript       string                    `json:"transcript"`
	Voice            cartesiaVoiceSpec         `json:"voice"`
	OutputFormat     cartesiaOutputFormat      `json:"output_format"`
	Language         *string                   `json:"language,omitempty"`
	GenerationConfig *cartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type cartesiaGenerationConfig struct {
	Speed float64 `json:"speed,omitempty"`
}

func buildCartesiaOutputFormat(opts SynthesizeOptions) cartesiaOutputFormat {
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 24000
	}

	switch opts.Format {
	case "mp3":
		return cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: sampleRate,
			BitRate:    128000,
		}
	case "wav":
		return cartesiaOutputFormat{
			Container:  "wav",
			Encoding:   "pcm_s16le",
			SampleRate: sampleRate,
		}
	default:
		return cartesiaOutputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: sampleRate,
		}
	}
}

// SynthesizeStream posts text and forwards the response body as it arrives.
func (c *Cartesia) SynthesizeStream(ctx context.Context, text string) (*SynthesisStream, error) {
	if strings.TrimSpace(c.opts.Voice) == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	model := c.opts.Model
	if model == "" {
		model = cartesiaDefaultModel
	}

	reqBody := cartesiaTTSRequest{
		ModelID:      model,
		Transcript:   text,
		Voice:        cartesiaVoiceSpec{Mode: "id", ID: c.opts.Voice},
		OutputFormat: buildCartesiaOutputFormat(c.opts),
	}
	if c.opts.Speed != 0 {
		reqBody.GenerationConfig = &cartesiaGenerationConfig{Speed: c.opts.Speed}
	}
	if c.opts.Language != "" {
		lang := c.opts.Language
		reqBody.Language = &lang
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Cartesia-Version", cartesiaVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		stream := NewSynthesisStream()
		stream.FinishSending()
		return stream, nil
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, core.NewHTTPError("cartesia", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	stream := NewSynthesisStream()
	go func() {
		defer stream.FinishSending()
		defer resp.Body.Close()
		go func() {
			select {
			case <-stream.Done():
				_ = resp.Body.Close()
			case <-stream.finished:
			}
		}()
		for {
			buf := make([]byte, cartesiaReadSize)
			n, err := resp.Body.Read(buf)
			if n > 0 {
				if !stream.Send(buf[:n]) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case <-stream.Done():
					default:
						if ctx.Err() != nil {
							stream.SetError(ctx.Err())
						} else {
							stream.SetError(fmt.Errorf("read audio: %w", err))
						}
					}
				}
				return
			}
		}
	}()
	return stream, nil
}
