package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
)

// maxPending caps how much audio the simulated driver buffers, like a DMA
// ring that overwrites when nobody reads.
const maxPending = time.Second

// SimSampler generates a sine tone at the rate a real microphone would
// deliver samples.
type SimSampler struct {
	freq float64
	now  func() time.Time

	mu          sync.Mutex
	rate        int
	frameBytes  int
	initialized bool
	last        time.Time
	pending     int // bytes
	phase       uint64
}

func NewSimSampler(freq float64) *SimSampler {
	return &SimSampler{freq: freq, now: time.Now}
}

func (s *SimSampler) Init(sampleRate, bitDepth, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return &InitError{Err: fmt.Errorf("already initialized")}
	}
	if bitDepth != 16 {
		return &InitError{Err: fmt.Errorf("unsupported bit depth %d", bitDepth)}
	}
	if sampleRate <= 0 || channels < 1 {
		return &InitError{Err: fmt.Errorf("invalid format %d Hz x %d", sampleRate, channels)}
	}
	s.rate = sampleRate
	s.frameBytes = channels * bitDepth / 8
	s.last = s.now()
	s.initialized = true
	return nil
}

func (s *SimSampler) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0
	}
	s.accrue()
	return s.pending
}

// accrue converts elapsed wall time into pending bytes. Called with s.mu held.
func (s *SimSampler) accrue() {
	now := s.now()
	elapsed := now.Sub(s.last)
	if elapsed > maxPending {
		elapsed = maxPending
	}
	frames := int(elapsed.Seconds() * float64(s.rate))
	if frames == 0 {
		return
	}
	s.last = now
	s.pending += frames * s.frameBytes
	if limit := int(maxPending.Seconds()*float64(s.rate)) * s.frameBytes; s.pending > limit {
		s.pending = limit
	}
}

func (s *SimSampler) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0, ErrNotInitialized
	}

	n := min(len(p), s.pending)
	n -= n % s.frameBytes
	channels := s.frameBytes / 2
	for off := 0; off < n; off += s.frameBytes {
		v := int16(math.Sin(2*math.Pi*s.freq*float64(s.phase)/float64(s.rate)) * 8000)
		for c := 0; c < channels; c++ {
			binary.LittleEndian.PutUint16(p[off+2*c:], uint16(v))
		}
		s.phase++
	}
	s.pending -= n
	return n, nil
}

func (s *SimSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = false
	s.pending = 0
	return nil
}
