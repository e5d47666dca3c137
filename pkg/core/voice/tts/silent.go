package tts

import "context"

// Silent is a Synthesizer that produces no audio. It lets the gateway run
// text-only when no speech backend is configured.
type Silent struct{}

func (Silent) Name() string {
	return "silent"
}

func (Silent) SynthesizeStream(ctx context.Context, text string) (*SynthesisStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stream := NewSynthesisStream()
	stream.FinishSending()
	return stream, nil
}
