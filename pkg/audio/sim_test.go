package audio

import (
	"testing"
	"time"
)

func TestSimSamplerPacing(t *testing.T) {
	now := time.Unix(0, 0)
	s := NewSimSampler(440)
	s.now = func() time.Time { return now }

	if err := s.Init(DefaultSampleRate, DefaultBitDepth, DefaultChannels); err != nil {
		t.Fatal(err)
	}
	if got := s.Available(); got != 0 {
		t.Errorf("Expected nothing available at start, got %d", got)
	}

	now = now.Add(100 * time.Millisecond)
	// 100ms at 16kHz mono 16-bit.
	if got := s.Available(); got != 3200 {
		t.Errorf("Expected 3200 bytes after 100ms, got %d", got)
	}

	buf := make([]byte, 2048)
	n, err := s.Read(buf)
	if err != nil || n != 2048 {
		t.Fatalf("Expected 2048 bytes, got %d, %v", n, err)
	}
	if got := s.Available(); got != 3200-2048 {
		t.Errorf("Expected %d bytes left, got %d", 3200-2048, got)
	}

	now = now.Add(time.Hour)
	if got := s.Available(); got != DefaultSampleRate*2 {
		t.Errorf("Expected pending audio capped at one second, got %d", got)
	}
}

func TestSimSamplerRejectsBitDepth(t *testing.T) {
	s := NewSimSampler(440)
	if err := s.Init(DefaultSampleRate, 24, 1); err == nil {
		t.Error("Expected error for 24-bit capture")
	}
}
