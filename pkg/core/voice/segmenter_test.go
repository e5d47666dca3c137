package voice

import (
	"strings"
	"testing"
)

func TestSegmenter_SentenceAcrossChunks(t *testing.T) {
	s := NewSegmenter()

	if _, ok := s.Push("Hello wor"); ok {
		t.Fatal("expected no segment for partial text")
	}
	seg, ok := s.Push("ld. How are you?")
	if !ok || seg.Text != "Hello world." {
		t.Fatalf("first segment = %q (ok=%v), want %q", seg.Text, ok, "Hello world.")
	}
	if !seg.First {
		t.Fatal("first segment should be marked First")
	}
	if s.Pending() != "How are you?" {
		t.Fatalf("pending = %q", s.Pending())
	}

	rest, ok := s.Flush()
	if !ok || rest.Text != "How are you?" {
		t.Fatalf("flushed = %q (ok=%v)", rest.Text, ok)
	}
	if rest.First {
		t.Fatal("only the first segment should be marked First")
	}
}

func TestSegmenter_TerminatorAtEndOfBuffer(t *testing.T) {
	s := NewSegmenter()
	seg, ok := s.Push("Done!")
	if !ok || seg.Text != "Done!" {
		t.Fatalf("segment = %q (ok=%v)", seg.Text, ok)
	}
}

func TestSegmenter_TerminatorInsideWordDoesNotSplit(t *testing.T) {
	s := NewSegmenter()
	if seg, ok := s.Push("Visit example.com to pay"); ok {
		t.Fatalf("unexpected segment %q", seg.Text)
	}
}

func TestSegmenter_OneCutPerPush(t *testing.T) {
	s := NewSegmenter()
	seg, ok := s.Push("One. Two. Three.")
	if !ok || seg.Text != "One." {
		t.Fatalf("segment = %q", seg.Text)
	}
	if s.Pending() != "Two. Three." {
		t.Fatalf("pending = %q", s.Pending())
	}
	seg, _ = s.Push("")
	if seg.Text != "Two." {
		t.Fatalf("second segment = %q", seg.Text)
	}
}

func TestSegmenter_SoftPauseOnlyWhenLong(t *testing.T) {
	s := NewSegmenter()
	if _, ok := s.Push("Well, I think"); ok {
		t.Fatal("short buffer should not split on a comma")
	}

	s = NewSegmenter()
	long := "Your installment plan covers twelve months, and the first payment is due soon"
	seg, ok := s.Push(long)
	if !ok || seg.Text != "Your installment plan covers twelve months," {
		t.Fatalf("segment = %q (ok=%v)", seg.Text, ok)
	}
	if !strings.HasPrefix(s.Pending(), "and the first") {
		t.Fatalf("pending = %q", s.Pending())
	}
}

func TestSegmenter_SoftPauseRequiresMinimumPrefix(t *testing.T) {
	s := NewSegmenter()
	text := "Yes, okay: " + strings.Repeat("word ", 10) + "then, more words follow here"
	seg, ok := s.Push(text)
	if !ok {
		t.Fatal("expected a soft split")
	}
	if len([]rune(seg.Text)) <= SoftSplitMinPrefix {
		t.Fatalf("segment %q is shorter than the minimum prefix", seg.Text)
	}
	if !strings.HasSuffix(seg.Text, "then,") {
		t.Fatalf("segment = %q", seg.Text)
	}
}

func TestSegmenter_AnyPeriodBeforeSpaceEndsSentence(t *testing.T) {
	s := NewSegmenter()
	seg, ok := s.Push("Please call Dr. Smith today. ")
	if !ok || seg.Text != "Please call Dr." {
		t.Fatalf("segment = %q (ok=%v)", seg.Text, ok)
	}
	if s.Pending() != "Smith today. " {
		t.Fatalf("pending = %q", s.Pending())
	}
	seg, ok = s.Push("")
	if !ok || seg.Text != "Smith today." {
		t.Fatalf("second segment = %q (ok=%v)", seg.Text, ok)
	}
}

func TestSegmenter_KeepsWordBoundaryInPending(t *testing.T) {
	s := NewSegmenter()
	s.Push("Please hold ")
	s.Push("on")
	rest, _ := s.Flush()
	if rest.Text != "Please hold on" {
		t.Fatalf("flushed = %q", rest.Text)
	}
}

func TestSegmenter_FlushEmpty(t *testing.T) {
	s := NewSegmenter()
	s.Push("   ")
	if _, ok := s.Flush(); ok {
		t.Fatal("whitespace-only pending should not flush")
	}
}
