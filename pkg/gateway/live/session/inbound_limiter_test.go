package session

import (
	"testing"
	"time"
)

func TestInboundLimiter_AllowsBurstThenDenies(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lim := newInboundLimiter(func() time.Time { return now }, 1, 0, 2)

	for i := 0; i < 2; i++ {
		if !lim.Allow(10) {
			t.Fatalf("frame %d should be allowed", i)
		}
	}
	if lim.Allow(10) {
		t.Fatal("third frame should be denied")
	}
}

func TestInboundLimiter_Refills(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lim := newInboundLimiter(func() time.Time { return now }, 10, 0, 1)

	for i := 0; i < 10; i++ {
		if !lim.Allow(1) {
			t.Fatalf("frame %d should be allowed", i)
		}
	}
	if lim.Allow(1) {
		t.Fatal("bucket should be empty")
	}

	// 100ms at 10 frames/s buys exactly one frame.
	now = now.Add(100 * time.Millisecond)
	if !lim.Allow(1) {
		t.Fatal("expected a refilled token")
	}
	if lim.Allow(1) {
		t.Fatal("expected deny without more time")
	}
}

func TestInboundLimiter_ByteBudget(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lim := newInboundLimiter(func() time.Time { return now }, 0, 100, 2)
	if !lim.Allow(150) {
		t.Fatal("150 bytes fit a 200 byte burst")
	}
	if lim.Allow(60) {
		t.Fatal("60 more bytes exceed the remaining budget")
	}
}

func TestInboundLimiter_DisabledIsNil(t *testing.T) {
	lim := newInboundLimiter(nil, 0, 0, 0)
	if lim != nil {
		t.Fatal("expected nil limiter when both rates are zero")
	}
	if !lim.Allow(1 << 20) {
		t.Fatal("nil limiter must allow")
	}
}
