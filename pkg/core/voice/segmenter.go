// Package voice decides when streamed agent text is ready to be spoken and
// drives speech synthesis for it.
package voice

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// SoftSplitMinBuffer is the buffered length (in characters) beyond which a
	// soft pause may end a segment when no sentence end is available.
	SoftSplitMinBuffer = 50

	// SoftSplitMinPrefix is the minimum segment length (in characters) for a
	// soft-pause split.
	SoftSplitMinPrefix = 15
)

// Segment is a span of text ready for synthesis.
type Segment struct {
	Text string

	// First is set on the first segment a Segmenter produces.
	First bool
}

// Segmenter accumulates cleaned agent text and cuts it into speakable spans.
// It makes at most one cut per Push. Use one Segmenter per pass.
type Segmenter struct {
	pending  string
	produced bool
}

// NewSegmenter creates an empty Segmenter.
func NewSegmenter() *Segmenter {
	return &Segmenter{}
}

// Push appends text and returns a segment if a cut point is now available.
func (s *Segmenter) Push(text string) (Segment, bool) {
	s.pending += text

	cut := sentenceCut(s.pending)
	if cut < 0 && utf8.RuneCountInString(s.pending) > SoftSplitMinBuffer {
		cut = softCut(s.pending)
	}
	if cut < 0 {
		return Segment{}, false
	}

	head := strings.TrimSpace(s.pending[:cut])
	s.pending = strings.TrimLeftFunc(s.pending[cut:], unicode.IsSpace)
	if head == "" {
		return Segment{}, false
	}
	return s.segment(head), true
}

// Flush returns whatever is pending, regardless of punctuation.
func (s *Segmenter) Flush() (Segment, bool) {
	rest := strings.TrimSpace(s.pending)
	s.pending = ""
	if rest == "" {
		return Segment{}, false
	}
	return s.segment(rest), true
}

// Pending returns the buffered text without consuming it.
func (s *Segmenter) Pending() string {
	return s.pending
}

func (s *Segmenter) segment(text string) Segment {
	seg := Segment{Text: text, First: !s.produced}
	s.produced = true
	return seg
}

// sentenceCut returns the index just past the first sentence terminator that
// is followed by whitespace or ends the buffer, or -1.
func sentenceCut(text string) int {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
		default:
			continue
		}
		if i+1 == len(text) || followedBySpace(text, i+1) {
			return i + 1
		}
	}
	return -1
}

// softCut returns the index just past the first comma, colon or newline that is
// followed by whitespace and leaves a long enough prefix, or -1.
func softCut(text string) int {
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case ',', ':', '\n':
		default:
			continue
		}
		if !followedBySpace(text, i+1) {
			continue
		}
		if utf8.RuneCountInString(text[:i+1]) > SoftSplitMinPrefix {
			return i + 1
		}
	}
	return -1
}

func followedBySpace(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}
