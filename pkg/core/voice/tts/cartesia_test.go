package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vango-go/vai-navigator/pkg/core"
)

func drain(t *testing.T, stream *SynthesisStream) []byte {
	t.Helper()
	var out []byte
	timeout := time.After(2 * time.Second)
	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				return out
			}
			out = append(out, chunk...)
		case <-timeout:
			t.Fatal("timed out draining synthesis stream")
		}
	}
}

func TestBuildCartesiaOutputFormat(t *testing.T) {
	mp3 := buildCartesiaOutputFormat(SynthesizeOptions{Format: "mp3", SampleRate: 44100})
	if mp3.Container != "mp3" || mp3.SampleRate != 44100 || mp3.BitRate == 0 {
		t.Fatalf("mp3 format = %#v, want mp3/44100/non-zero bitrate", mp3)
	}

	wav := buildCartesiaOutputFormat(SynthesizeOptions{Format: "wav", SampleRate: 16000})
	if wav.Container != "wav" || wav.Encoding != "pcm_s16le" || wav.SampleRate != 16000 {
		t.Fatalf("wav format = %#v, want wav/pcm_s16le/16000", wav)
	}

	def := buildCartesiaOutputFormat(SynthesizeOptions{})
	if def.Container != "raw" || def.Encoding != "pcm_s16le" || def.SampleRate != 24000 {
		t.Fatalf("default format = %#v, want raw/pcm_s16le/24000", def)
	}
}

func TestCartesia_StreamsResponseBody(t *testing.T) {
	audio := bytes.Repeat([]byte{1, 2, 3, 4}, 3000)
	var got cartesiaTTSRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tts/bytes" {
			t.Errorf("path=%q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer ck" || r.Header.Get("Cartesia-Version") == "" {
			t.Errorf("missing auth headers")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write(audio)
	}))
	defer srv.Close()

	c := NewCartesia("ck", SynthesizeOptions{Voice: "voice-1", Language: "ar"}).WithBaseURL(srv.URL)
	stream, err := c.SynthesizeStream(context.Background(), "Hello there.")
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	defer stream.Close()

	out := drain(t, stream)
	if !bytes.Equal(out, audio) {
		t.Fatalf("audio mismatch: got %d bytes, want %d", len(out), len(audio))
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if got.Transcript != "Hello there." || got.Voice.ID != "voice-1" || got.Language == nil || *got.Language != "ar" {
		t.Fatalf("unexpected request: %+v", got)
	}
}

func TestCartesia_HTTPErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewCartesia("bad", SynthesizeOptions{Voice: "v"}).WithBaseURL(srv.URL).SynthesizeStream(context.Background(), "hi")
	coreErr, ok := err.(*core.Error)
	if !ok || coreErr.Type != core.ErrAuthentication {
		t.Fatalf("err=%v, want authentication core.Error", err)
	}
}

func TestCartesia_RequiresVoice(t *testing.T) {
	if _, err := NewCartesia("k", SynthesizeOptions{}).SynthesizeStream(context.Background(), "hi"); err == nil {
		t.Fatal("expected error without voice id")
	}
}

func TestSynthesisStream_ErrReturnsAfterFinishWithoutClose(t *testing.T) {
	stream := NewSynthesisStream()
	go func() {
		stream.Send([]byte{1})
		stream.SetError(context.DeadlineExceeded)
		stream.SetError(context.Canceled)
		stream.FinishSending()
	}()
	drain(t, stream)

	done := make(chan error, 1)
	go func() { done <- stream.Err() }()
	select {
	case err := <-done:
		if err != context.DeadlineExceeded {
			t.Fatalf("Err() = %v, want first error", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Err() blocked after FinishSending")
	}
}

func TestSynthesisStream_SendAfterCloseFails(t *testing.T) {
	stream := NewSynthesisStream()
	_ = stream.Close()
	_ = stream.Close()
	if stream.Send([]byte{1}) {
		t.Fatal("Send should fail after Close")
	}
}

func TestSilent_ProducesNoAudio(t *testing.T) {
	stream, err := Silent{}.SynthesizeStream(context.Background(), "anything")
	if err != nil {
		t.Fatalf("SynthesizeStream: %v", err)
	}
	if out := drain(t, stream); len(out) != 0 {
		t.Fatalf("expected no audio, got %d bytes", len(out))
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
}
