package device

import (
	"sync"
	"testing"
)

func TestStatusConcurrentCounters(t *testing.T) {
	s := NewStatus()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.IncFrameCount()
				s.AddAudioBytes(2)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if snap.FrameCount != 8000 {
		t.Errorf("Expected 8000 frames, got %d", snap.FrameCount)
	}
	if snap.AudioBytes != 16000 {
		t.Errorf("Expected 16000 audio bytes, got %d", snap.AudioBytes)
	}
}

func TestStatusFlags(t *testing.T) {
	s := NewStatus()
	if s.CameraInitialized() || s.SamplerInitialized() {
		t.Fatal("flags should start false")
	}

	s.SetCameraInitialized(true)
	s.SetSamplerInitialized(true)
	s.SetLinkConnected(true)

	snap := s.Snapshot()
	if !snap.CameraInitialized || !snap.SamplerInitialized || !snap.LinkConnected {
		t.Errorf("Expected all flags set, got %+v", snap)
	}
}

func TestCheckpointsBounded(t *testing.T) {
	c := NewCheckpoints(3)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		c.Add(name, "")
	}

	items := c.List()
	if len(items) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(items))
	}
	if items[0].Name != "c" || items[2].Name != "e" {
		t.Errorf("Expected oldest entries dropped, got %v", items)
	}
	if items[2].Seq != 5 {
		t.Errorf("Expected seq 5 on newest entry, got %d", items[2].Seq)
	}
}
