package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrEmpty means the producer did not complete a frame within its own timeout.
	ErrEmpty = errors.New("camera: no frame available")
	// ErrNotInitialized means the producer never came up.
	ErrNotInitialized = errors.New("camera: not initialized")
	// ErrPoolExhausted means the single frame buffer was not returned in time.
	ErrPoolExhausted = errors.New("camera: frame buffer pool exhausted")
)

// InitReason classifies producer setup failures.
type InitReason string

const (
	ReasonNotFound     InitReason = "not_found"
	ReasonNotSupported InitReason = "not_supported"
	ReasonNoMem        InitReason = "no_mem"
	ReasonInvalidState InitReason = "invalid_state"
	ReasonUnknown      InitReason = "unknown"
)

// InitError reports why the producer could not be started.
type InitError struct {
	Reason InitReason
	Err    error
}

func (e *InitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("camera init failed: %s", e.Reason)
	}
	return fmt.Sprintf("camera init failed: %s: %v", e.Reason, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// asInitError keeps a producer's own InitError and classifies anything else as unknown.
func asInitError(err error) *InitError {
	var ie *InitError
	if errors.As(err, &ie) {
		return ie
	}
	return &InitError{Reason: ReasonUnknown, Err: err}
}

// Producer is the hardware frame source. Grab must return within a bounded
// time of its own choosing; there is no external cancellation.
type Producer interface {
	Init(cfg Config) error
	Deinit() error
	Grab() (*Frame, error)
	Return(f *Frame)
	SetFrameSize(size FrameSize) error
}

// NewProducer selects a backend by name. "auto" prefers the platform camera
// and falls back to the simulated test pattern when none is available.
func NewProducer(backend string) (Producer, error) {
	switch strings.ToLower(backend) {
	case "", "auto":
		p, err := newPlatformProducer()
		if err != nil {
			slog.Warn("Platform camera unavailable, using simulated frames", "error", err)
			return NewSimProducer(), nil
		}
		return p, nil
	case "sim":
		return NewSimProducer(), nil
	case "rpicam", "ffmpeg":
		return newPlatformProducer()
	default:
		return nil, fmt.Errorf("unknown camera backend %q", backend)
	}
}
