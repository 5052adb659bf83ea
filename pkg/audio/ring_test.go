package audio

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/wachiwi/diary-cam/pkg/device"
	"github.com/youpy/go-wav"
)

// scriptedSampler serves fills where every byte equals the fill number, so
// a torn snapshot shows up as mixed byte values.
type scriptedSampler struct {
	mu      sync.Mutex
	avail   int
	fill    byte
	initErr error
	closed  bool
}

func (s *scriptedSampler) Init(rate, bits, channels int) error { return s.initErr }

func (s *scriptedSampler) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avail
}

func (s *scriptedSampler) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(len(p), s.avail)
	for i := 0; i < n; i++ {
		p[i] = s.fill
	}
	return n, nil
}

func (s *scriptedSampler) Close() error { s.closed = true; return nil }

func (s *scriptedSampler) next(avail int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avail = avail
	s.fill++
}

func newTestRing(t *testing.T) (*RingBuffer, *scriptedSampler, *device.Status) {
	t.Helper()
	s := &scriptedSampler{}
	status := device.NewStatus()
	r := NewRingBuffer(s, status)
	if err := r.Initialize(DefaultSampleRate, DefaultBitDepth, DefaultChannels); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return r, s, status
}

func TestCapacity(t *testing.T) {
	r := NewRingBuffer(&scriptedSampler{}, device.NewStatus())
	if r.Capacity() != 2048 {
		t.Errorf("Expected capacity 2048, got %d", r.Capacity())
	}
}

func TestInitializeFailure(t *testing.T) {
	status := device.NewStatus()
	r := NewRingBuffer(&scriptedSampler{initErr: errors.New("no i2s")}, status)

	err := r.Initialize(DefaultSampleRate, DefaultBitDepth, DefaultChannels)
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected *InitError, got %v", err)
	}
	if r.Initialized() || status.SamplerInitialized() {
		t.Error("sampler must stay uninitialized")
	}
	if _, err := r.FillCycle(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestFillCycle(t *testing.T) {
	t.Run("nothing available", func(t *testing.T) {
		r, _, status := newTestRing(t)
		n, err := r.FillCycle()
		if err != nil || n != 0 {
			t.Fatalf("Expected empty fill, got %d, %v", n, err)
		}
		snap := r.Snapshot()
		if snap.Ready || snap.Length != 0 || snap.Seq != 0 {
			t.Errorf("Expected untouched buffer, got %+v", snap)
		}
		if status.AudioBytes() != 0 {
			t.Errorf("Expected 0 audio bytes, got %d", status.AudioBytes())
		}
	})

	t.Run("capped at capacity", func(t *testing.T) {
		r, s, status := newTestRing(t)
		s.next(5000)
		n, err := r.FillCycle()
		if err != nil {
			t.Fatal(err)
		}
		if n != r.Capacity() {
			t.Errorf("Expected fill of %d, got %d", r.Capacity(), n)
		}
		if status.AudioBytes() != uint64(r.Capacity()) {
			t.Errorf("Expected %d audio bytes, got %d", r.Capacity(), status.AudioBytes())
		}
		snap := r.Snapshot()
		if snap.Length > r.Capacity() || len(snap.Data) != snap.Length {
			t.Errorf("Snapshot length %d exceeds capacity", snap.Length)
		}
	})

	t.Run("overwrites instead of appending", func(t *testing.T) {
		r, s, _ := newTestRing(t)
		s.next(1000)
		r.FillCycle()
		s.next(300)
		r.FillCycle()

		snap := r.Snapshot()
		if snap.Length != 300 {
			t.Fatalf("Expected latest fill of 300 bytes, got %d", snap.Length)
		}
		if snap.Data[0] != 2 || snap.Seq != 2 {
			t.Errorf("Expected second fill, got byte %d seq %d", snap.Data[0], snap.Seq)
		}
	})

	t.Run("odd byte counts drop the partial sample", func(t *testing.T) {
		r, s, _ := newTestRing(t)
		s.next(101)
		n, _ := r.FillCycle()
		if n != 100 {
			t.Errorf("Expected 100 bytes, got %d", n)
		}
	})
}

func TestReadyFlagConsumedBySnapshot(t *testing.T) {
	r, s, _ := newTestRing(t)
	s.next(64)
	r.FillCycle()

	if !r.Snapshot().Ready {
		t.Error("Expected ready after a fill")
	}
	snap := r.Snapshot()
	if snap.Ready {
		t.Error("ready flag should be cleared by the previous snapshot")
	}
	if snap.Length != 64 {
		t.Errorf("data should still be served, got %d bytes", snap.Length)
	}

	// An empty fill leaves the flag unchanged.
	s.next(0)
	r.FillCycle()
	if r.Snapshot().Ready {
		t.Error("empty fill must not set the ready flag")
	}
}

func TestSnapshotNeverTorn(t *testing.T) {
	r, s, _ := newTestRing(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		size := 1
		for {
			select {
			case <-stop:
				return
			default:
			}
			size = size%r.Capacity() + 2
			s.next(size)
			r.FillCycle()
		}
	}()

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := r.Snapshot()
		if snap.Length > r.Capacity() {
			t.Fatalf("Snapshot length %d exceeds capacity", snap.Length)
		}
		for i := 1; i < snap.Length; i++ {
			if snap.Data[i] != snap.Data[0] {
				t.Fatalf("torn snapshot: byte %d is %d, byte 0 is %d", i, snap.Data[i], snap.Data[0])
			}
		}
	}
	close(stop)
	wg.Wait()
}

func TestReadyMatchesSeq(t *testing.T) {
	r, s, _ := newTestRing(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			s.next(64)
			r.FillCycle()
		}
	}()

	// A ready snapshot always carries a seq this reader has not seen.
	var lastSeq uint64
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		snap := r.Snapshot()
		if snap.Ready && snap.Seq == lastSeq {
			t.Fatalf("ready reported twice for seq %d", snap.Seq)
		}
		if snap.Seq < lastSeq {
			t.Fatalf("seq went backwards: %d after %d", snap.Seq, lastSeq)
		}
		lastSeq = snap.Seq
	}
	close(stop)
	wg.Wait()
}

func TestCapacityDuringFills(t *testing.T) {
	r, s, _ := newTestRing(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			s.next(i%r.Capacity() + 2)
			r.FillCycle()
		}
	}()
	for i := 0; i < 200; i++ {
		if r.Capacity() != 2048 {
			t.Fatalf("capacity changed to %d", r.Capacity())
		}
	}
	<-done
}

func TestClose(t *testing.T) {
	r, s, status := newTestRing(t)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if !s.closed || status.SamplerInitialized() {
		t.Error("Close should stop the sampler and clear the status flag")
	}
}

func TestWriteWAV(t *testing.T) {
	r, s, _ := newTestRing(t)
	s.next(512)
	r.FillCycle()
	snap := r.Snapshot()

	var buf bytes.Buffer
	if err := WriteWAV(&buf, snap); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	reader := wav.NewReader(bytes.NewReader(buf.Bytes()))
	format, err := reader.Format()
	if err != nil {
		t.Fatalf("failed to read wav format: %v", err)
	}
	if format.SampleRate != DefaultSampleRate || format.NumChannels != 1 || format.BitsPerSample != 16 {
		t.Errorf("unexpected format %+v", format)
	}

	reader = wav.NewReader(bytes.NewReader(buf.Bytes()))
	pcm, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("failed to read wav data: %v", err)
	}
	if !bytes.Equal(pcm, snap.Data) {
		t.Errorf("Expected %d PCM bytes back, got %d", len(snap.Data), len(pcm))
	}
}

func TestWriteWAVEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	// RIFF header, fmt chunk and an empty data chunk.
	if buf.Len() != 44 {
		t.Errorf("Expected a 44 byte header, got %d", buf.Len())
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("RIFF")) {
		t.Error("missing RIFF magic")
	}
}
