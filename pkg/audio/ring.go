package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wachiwi/diary-cam/pkg/device"
)

// RingBuffer is a live tap on the microphone. Each fill replaces the
// previous one; nothing accumulates beyond the fixed capacity.
//
// Fills go into a back buffer that is swapped in under the write lock, so
// a Snapshot always sees exactly one complete fill.
type RingBuffer struct {
	sampler Sampler
	status  *device.Status

	fillMu   sync.Mutex // single writer
	capacity int

	mu         sync.RWMutex
	front      []byte
	frontLen   int
	seq        uint64
	back       []byte
	sampleRate int
	bitDepth   int
	channels   int

	ready       atomic.Bool
	initialized atomic.Bool
}

// Snapshot is a copy of the most recent fill.
type Snapshot struct {
	Data       []byte
	Length     int
	SampleRate int
	BitDepth   int
	Channels   int
	// Ready reports whether a fill landed since the previous Snapshot.
	Ready bool
	Seq   uint64
}

// NewRingBuffer sizes the buffer to two nominal chunks.
func NewRingBuffer(s Sampler, status *device.Status) *RingBuffer {
	capacity := 2 * ChunkSamples * DefaultBitDepth / 8 * DefaultChannels
	return &RingBuffer{
		sampler:  s,
		status:   status,
		capacity: capacity,
		front:    make([]byte, capacity),
		back:     make([]byte, capacity),
	}
}

// Capacity is the largest fill, in bytes.
func (r *RingBuffer) Capacity() int {
	return r.capacity
}

// Initialized reports whether Initialize succeeded.
func (r *RingBuffer) Initialized() bool {
	return r.initialized.Load()
}

// Initialize configures and starts the sampler. On failure the sampling
// loop must not be started.
func (r *RingBuffer) Initialize(sampleRate, bitDepth, channels int) error {
	if r.initialized.Load() {
		return &InitError{Err: fmt.Errorf("already initialized")}
	}
	if err := r.sampler.Init(sampleRate, bitDepth, channels); err != nil {
		r.status.Record("audio_init_failed", err.Error())
		var ie *InitError
		if errors.As(err, &ie) {
			return ie
		}
		return &InitError{Err: err}
	}

	r.mu.Lock()
	r.sampleRate = sampleRate
	r.bitDepth = bitDepth
	r.channels = channels
	r.mu.Unlock()

	r.initialized.Store(true)
	r.status.SetSamplerInitialized(true)
	r.status.Record("audio_init", fmt.Sprintf("%d Hz, %d bit, %d ch", sampleRate, bitDepth, channels))
	slog.Info("Audio sampler initialized", "rate", sampleRate, "bits", bitDepth, "channels", channels, "capacity", r.Capacity())
	return nil
}

// FillCycle moves whatever the sampler has ready into the buffer, up to
// Capacity. It returns the number of bytes written. With nothing available
// it writes nothing and leaves the ready flag alone.
func (r *RingBuffer) FillCycle() (int, error) {
	if !r.initialized.Load() {
		return 0, ErrNotInitialized
	}

	r.fillMu.Lock()
	defer r.fillMu.Unlock()

	avail := r.sampler.Available()
	if avail <= 0 {
		return 0, nil
	}
	want := min(avail, r.capacity)

	n := 0
	for n < want {
		m, err := r.sampler.Read(r.back[n:want])
		n += m
		if err != nil {
			if n == 0 {
				return 0, fmt.Errorf("failed to read samples: %w", err)
			}
			break
		}
		if m == 0 {
			break
		}
	}
	// Whole samples only.
	n -= n % (r.bitDepth / 8 * r.channels)
	if n == 0 {
		return 0, nil
	}

	r.mu.Lock()
	r.front, r.back = r.back, r.front
	r.frontLen = n
	r.seq++
	r.ready.Store(true)
	r.mu.Unlock()

	r.status.AddAudioBytes(uint64(n))
	audioBytes.Add(context.Background(), int64(n))
	return n, nil
}

// Snapshot copies the latest fill and clears the ready flag.
func (r *RingBuffer) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := make([]byte, r.frontLen)
	copy(data, r.front[:r.frontLen])
	return Snapshot{
		Data:       data,
		Length:     r.frontLen,
		SampleRate: r.sampleRate,
		BitDepth:   r.bitDepth,
		Channels:   r.channels,
		Ready:      r.ready.Swap(false),
		Seq:        r.seq,
	}
}

// Close stops the sampler.
func (r *RingBuffer) Close() error {
	if !r.initialized.Swap(false) {
		return nil
	}
	r.status.SetSamplerInitialized(false)
	return r.sampler.Close()
}
