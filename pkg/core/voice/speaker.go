package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/vango-go/vai-navigator/pkg/core/voice/tts"
)

// SpeakerHooks receive the Speaker's output. Either may be nil.
type SpeakerHooks struct {
	// OnStart runs once, before the first segment of the pass is synthesized.
	OnStart func() error
	// OnAudio receives each audio chunk in order.
	OnAudio func(chunk []byte) error
}

// Speaker turns streamed text into synthesized audio, one segment at a time.
// Audio for a segment is fully delivered before Write or Flush returns, so it
// always follows any text the caller emitted before the call.
type Speaker struct {
	seg     *Segmenter
	synth   tts.Synthesizer
	hooks   SpeakerHooks
	started bool
}

// NewSpeaker creates a Speaker for one pass.
func NewSpeaker(synth tts.Synthesizer, hooks SpeakerHooks) *Speaker {
	if synth == nil {
		synth = tts.Silent{}
	}
	return &Speaker{
		seg:   NewSegmenter(),
		synth: synth,
		hooks: hooks,
	}
}

// Write buffers text and speaks a segment if one is ready.
func (s *Speaker) Write(ctx context.Context, text string) error {
	if segment, ok := s.seg.Push(text); ok {
		return s.speak(ctx, segment)
	}
	return nil
}

// Flush speaks whatever text is still buffered.
func (s *Speaker) Flush(ctx context.Context) error {
	if segment, ok := s.seg.Flush(); ok {
		return s.speak(ctx, segment)
	}
	return nil
}

// Started reports whether any segment was spoken.
func (s *Speaker) Started() bool {
	return s.started
}

func (s *Speaker) speak(ctx context.Context, segment Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.started {
		s.started = true
		if s.hooks.OnStart != nil {
			if err := s.hooks.OnStart(); err != nil {
				return err
			}
		}
	}

	stream, err := s.synth.SynthesizeStream(ctx, segment.Text)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream.Chunks():
			if !ok {
				if err := stream.Err(); err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("synthesize: %w", err)
				}
				return ctx.Err()
			}
			if len(chunk) == 0 || s.hooks.OnAudio == nil {
				continue
			}
			if err := s.hooks.OnAudio(chunk); err != nil {
				return err
			}
		}
	}
}
