package audio

import (
	"errors"
	"fmt"
	"log/slog"
)

// Nominal capture parameters of the on-board PDM microphone.
const (
	DefaultSampleRate = 16000
	DefaultBitDepth   = 16
	DefaultChannels   = 1

	// ChunkSamples is the nominal number of samples read per fill cycle.
	ChunkSamples = 512
)

var ErrNotInitialized = errors.New("audio sampler not initialized")

// Sampler is a hardware audio source. Available reports how many bytes can
// be read without blocking; Read never blocks for longer than that.
type Sampler interface {
	Init(sampleRate, bitDepth, channels int) error
	Available() int
	Read(p []byte) (int, error)
	Close() error
}

// InitError is returned when the sampler cannot be configured or started.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("audio init failed: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// NewSampler returns the sampler for backend. "auto" prefers the ALSA
// capture device and falls back to the simulated tone.
func NewSampler(backend, device string) (Sampler, error) {
	switch backend {
	case "", "auto":
		s, err := newALSASampler(device)
		if err != nil {
			slog.Warn("ALSA capture not available, using simulated microphone", "error", err)
			return NewSimSampler(440), nil
		}
		return s, nil
	case "sim":
		return NewSimSampler(440), nil
	case "alsa":
		return newALSASampler(device)
	default:
		return nil, fmt.Errorf("unknown audio backend %q", backend)
	}
}
