// Package tts provides text-to-speech backends.
package tts

import (
	"context"
	"sync"
)

// Synthesizer turns a span of text into a stream of audio chunks.
type Synthesizer interface {
	// Name returns the backend identifier.
	Name() string

	// SynthesizeStream starts synthesis of text. Audio is delivered through the
	// returned stream until it is exhausted, fails, or is closed.
	SynthesizeStream(ctx context.Context, text string) (*SynthesisStream, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier
	Model      string  // Backend model identifier
	Language   string  // Language code
	Format     string  // Output format: "wav", "mp3", or "pcm"
	SampleRate int     // Sample rate: 8000, 16000, 22050, 24000, 44100, 48000
	Speed      float64 // Speed multiplier (0.6-1.5, default 1.0)
}

// SynthesisStream provides streaming audio output.
//
// Producers call Send for each chunk, SetError on failure and FinishSending
// when done. Consumers range over Chunks and then check Err.
type SynthesisStream struct {
	chunks    chan []byte
	done      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	finOnce   sync.Once

	errMu sync.Mutex
	err   error
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks:   make(chan []byte, 64),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks. It is closed when the producer
// finishes.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err waits for the producer to finish (or the stream to be closed) and
// returns the first error it reported.
func (s *SynthesisStream) Err() error {
	select {
	case <-s.finished:
	case <-s.done:
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close stops the stream. Producers observe it through Send or Done.
func (s *SynthesisStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return nil
}

// Done is closed once the consumer has closed the stream.
func (s *SynthesisStream) Done() <-chan struct{} {
	return s.done
}

// SetError records err if no error was recorded yet.
func (s *SynthesisStream) SetError(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Send sends a chunk to the stream. Returns false if stream is closed.
func (s *SynthesisStream) Send(chunk []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending closes the chunks channel to signal completion.
func (s *SynthesisStream) FinishSending() {
	s.finOnce.Do(func() {
		close(s.chunks)
		close(s.finished)
	})
}
