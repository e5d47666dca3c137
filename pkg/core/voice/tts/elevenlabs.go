package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-navigator/pkg/core"
)

const (
	elevenLabsDefaultWSBase = "wss://api.elevenlabs.io/v1/text-to-speech/{voice_id}/stream-input"
	elevenLabsDefaultModel  = "eleven_flash_v2_5"
	elevenLabsWriteTimeout  = 5 * time.Second
)

// ElevenLabs synthesizes each span over one stream-input websocket.
type ElevenLabs struct {
	apiKey    string
	wsBaseURL string
	opts      SynthesizeOptions
	dialer    *websocket.Dialer
}

var _ Synthesizer = (*ElevenLabs)(nil)

// NewElevenLabs creates an ElevenLabs synthesizer for the configured voice.
func NewElevenLabs(apiKey string, opts SynthesizeOptions) *ElevenLabs {
	return &ElevenLabs{
		apiKey:    strings.TrimSpace(apiKey),
		wsBaseURL: elevenLabsDefaultWSBase,
		opts:      opts,
		dialer:    websocket.DefaultDialer,
	}
}

// WithWSBaseURL overrides the websocket endpoint. "{voice_id}" is substituted.
func (e *ElevenLabs) WithWSBaseURL(base string) *ElevenLabs {
	base = strings.TrimSpace(base)
	if base != "" {
		e.wsBaseURL = base
	}
	return e
}

func (e *ElevenLabs) Name() string {
	return "elevenlabs"
}

// SynthesizeStream sends text with a flush and streams audio until the
// backend marks the generation final.
func (e *ElevenLabs) SynthesizeStream(ctx context.Context, text string) (*SynthesisStream, error) {
	if e.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs api key is required")
	}
	voiceID := strings.TrimSpace(e.opts.Voice)
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}
	wsURL, err := buildElevenLabsWSURL(e.wsBaseURL, voiceID, e.opts)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("xi-api-key", e.apiKey)
	conn, resp, err := e.dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return nil, core.NewHTTPError("elevenlabs", resp.StatusCode, "")
		}
		return nil, core.NewProviderError("elevenlabs", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(elevenLabsWriteTimeout))
	for _, payload := range []map[string]any{
		{"text": " ", "voice_id": voiceID},
		{"text": spanText(text), "flush": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(payload); err != nil {
			_ = conn.Close()
			return nil, core.NewProviderError("elevenlabs", err)
		}
	}

	stream := NewSynthesisStream()
	go func() {
		select {
		case <-ctx.Done():
		case <-stream.Done():
		case <-stream.finished:
		}
		_ = conn.Close()
	}()
	go func() {
		defer stream.FinishSending()
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					stream.SetError(ctx.Err())
					return
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					return
				}
				select {
				case <-stream.Done():
				default:
					stream.SetError(core.NewProviderError("elevenlabs", err))
				}
				return
			}

			var msg elevenLabsMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Error != "" {
				stream.SetError(core.NewProviderError("elevenlabs", errors.New(msg.Error)))
				return
			}
			if msg.Audio != "" {
				audio, err := base64.StdEncoding.DecodeString(msg.Audio)
				if err == nil && len(audio) > 0 {
					if !stream.Send(audio) {
						return
					}
				}
			}
			if msg.IsFinal || msg.IsFinalSnake {
				return
			}
		}
	}()

	return stream, nil
}

type elevenLabsMessage struct {
	Audio        string `json:"audio"`
	IsFinal      bool   `json:"isFinal"`
	IsFinalSnake bool   `json:"is_final"`
	Error        string `json:"error"`
}

// spanText returns text with the trailing space the backend expects.
func spanText(text string) string {
	text = strings.TrimSpace(text)
	if text != "" && !strings.HasSuffix(text, " ") {
		text += " "
	}
	return text
}

func buildElevenLabsWSURL(base, voiceID string, opts SynthesizeOptions) (string, error) {
	if strings.TrimSpace(base) == "" {
		base = elevenLabsDefaultWSBase
	}
	base = strings.ReplaceAll(base, "{voice_id}", url.PathEscape(voiceID))
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid elevenlabs ws url: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream-input"
	}
	q := u.Query()
	if q.Get("model_id") == "" {
		model := opts.Model
		if model == "" {
			model = elevenLabsDefaultModel
		}
		q.Set("model_id", model)
	}
	if q.Get("output_format") == "" {
		q.Set("output_format", elevenLabsOutputFormat(opts))
	}
	if opts.Language != "" && q.Get("language_code") == "" {
		q.Set("language_code", opts.Language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func elevenLabsOutputFormat(opts SynthesizeOptions) string {
	rate := opts.SampleRate
	if rate == 0 {
		rate = 24000
	}
	if opts.Format == "mp3" {
		return fmt.Sprintf("mp3_%d_128", rate)
	}
	return fmt.Sprintf("pcm_%d", rate)
}
