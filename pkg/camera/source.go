package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wachiwi/diary-cam/pkg/device"
)

// FrameSource owns the producer and hands out at most one frame at a time.
//
// Acquire runs the recovery sequence (deinit, power cycle, pause, reinit,
// reapply RecoveryProfile, retry) when a grab comes back empty. The source
// never gives up permanently: a Degraded source recovers again on the next
// Acquire.
type FrameSource struct {
	producer Producer
	power    PowerLine
	status   *device.Status
	policy   RecoveryPolicy
	sleep    func(time.Duration)

	mu    sync.Mutex // serializes producer calls and state transitions
	cfg   Config
	state atomic.Int32

	// slot holds the single frame buffer token.
	slot chan struct{}
}

// Option customizes a FrameSource.
type Option func(*FrameSource)

// WithRecoveryPolicy overrides DefaultRecoveryPolicy.
func WithRecoveryPolicy(p RecoveryPolicy) Option {
	return func(s *FrameSource) { s.policy = p }
}

// WithPowerLine power-cycles the sensor during recovery.
func WithPowerLine(p PowerLine) Option {
	return func(s *FrameSource) { s.power = p }
}

// NewFrameSource wraps a producer. The source is Uninitialized until Initialize succeeds.
func NewFrameSource(p Producer, status *device.Status, opts ...Option) *FrameSource {
	s := &FrameSource{
		producer: p,
		power:    NoopPowerLine{},
		status:   status,
		policy:   DefaultRecoveryPolicy(),
		sleep:    time.Sleep,
		slot:     make(chan struct{}, 1),
	}
	s.slot <- struct{}{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state without blocking on in-flight grabs.
func (s *FrameSource) State() State {
	return State(s.state.Load())
}

// Config returns the stored camera configuration.
func (s *FrameSource) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Initialize starts the producer with cfg. Failure leaves the source
// Uninitialized; the rest of the agent keeps running without frames.
func (s *FrameSource) Initialize(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() != StateUninitialized {
		return &InitError{Reason: ReasonInvalidState, Err: fmt.Errorf("source is %s", s.State())}
	}
	s.cfg = cfg

	if err := s.initProducer(); err != nil {
		s.transition(evInitFailed)
		s.status.Record("camera_init_failed", err.Error())
		slog.Error("Camera initialization failed", "reason", err.Reason, "error", err.Err)
		return err
	}
	s.transition(evInitOK)
	s.status.Record("camera_init", string(RecoveryProfile))
	slog.Info("Camera initialized", "frame_size", cfg.FrameSize, "profile", RecoveryProfile, "fb_count", cfg.FBCount)
	return nil
}

// Acquire blocks until a frame is available or the producer's own timeout
// expires. ctx only bounds the wait for the frame buffer slot. The caller
// must Release the returned handle exactly once.
func (s *FrameSource) Acquire(ctx context.Context) (*Handle, error) {
	if s.State() == StateUninitialized {
		return nil, ErrNotInitialized
	}

	select {
	case <-s.slot:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, ctx.Err())
	}

	frame, err := s.grab()
	if err != nil {
		s.slot <- struct{}{}
		return nil, err
	}
	return &Handle{frame: frame, src: s}, nil
}

// Close shuts the producer down and releases the power line.
func (s *FrameSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.State() != StateUninitialized {
		err = s.producer.Deinit()
	}
	if cerr := s.power.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (s *FrameSource) grab() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateReady:
		f, err := s.producer.Grab()
		if err == nil {
			return f, nil
		}
		grabFailures.Add(context.Background(), 1)
		s.status.IncCaptureFailures()
		slog.Warn("Frame grab failed, attempting recovery", "error", err)
		s.transition(evGrabFailed)
		return s.recover(err)
	case StateDegraded:
		s.transition(evGrabFailed)
		return s.recover(ErrEmpty)
	case StateUninitialized:
		return nil, ErrNotInitialized
	default:
		return nil, ErrEmpty
	}
}

// recover runs the recovery sequence. Called with s.mu held and the state Recovering.
func (s *FrameSource) recover(cause error) (*Frame, error) {
	s.status.IncRecoveries()

	for attempt := 1; attempt <= s.policy.Attempts; attempt++ {
		if err := s.producer.Deinit(); err != nil {
			slog.Warn("Camera deinit failed", "error", err)
		}
		s.powerCycle()
		s.sleep(s.policy.Pause)

		if err := s.initProducer(); err != nil {
			slog.Error("Camera reinitialization failed", "attempt", attempt, "error", err)
			cause = err
			continue
		}

		f, err := s.producer.Grab()
		if err == nil {
			s.transition(evRecovered)
			recoveries.Add(context.Background(), 1, outcomeOK)
			s.status.Record("camera_recovered", fmt.Sprintf("attempt %d", attempt))
			slog.Info("Camera recovered", "attempt", attempt, "bytes", f.Len())
			return f, nil
		}
		cause = err
	}

	s.transition(evRecoveryFailed)
	recoveries.Add(context.Background(), 1, outcomeFailed)
	s.status.Record("camera_recovery_failed", cause.Error())
	slog.Error("Camera recovery failed", "error", cause)
	return nil, fmt.Errorf("%w: recovery failed: %v", ErrEmpty, cause)
}

// initProducer starts the producer with the stored config at
// RecoveryProfile, so a streaming producer launches once per init.
func (s *FrameSource) initProducer() *InitError {
	cfg := s.cfg
	cfg.FrameSize = RecoveryProfile
	if err := s.producer.Init(cfg); err != nil {
		return asInitError(err)
	}
	if err := s.producer.SetFrameSize(RecoveryProfile); err != nil {
		slog.Warn("Failed to apply recovery frame size", "profile", RecoveryProfile, "error", err)
	}
	return nil
}

func (s *FrameSource) powerCycle() {
	if err := s.power.PowerDown(); err != nil {
		slog.Warn("Camera power down failed", "error", err)
		return
	}
	s.sleep(s.policy.Pause)
	if err := s.power.PowerUp(); err != nil {
		slog.Warn("Camera power up failed", "error", err)
	}
}

func (s *FrameSource) transition(ev event) {
	from := s.State()
	to, ok := next(from, ev)
	if !ok {
		slog.Error("Invalid camera state transition", "from", from, "event", ev)
		return
	}
	s.state.Store(int32(to))
	s.status.SetCameraInitialized(to == StateReady)
	if from != to {
		slog.Debug("Camera state changed", "from", from, "to", to)
	}
}

func (s *FrameSource) release(f *Frame) {
	s.mu.Lock()
	s.producer.Return(f)
	s.mu.Unlock()

	select {
	case s.slot <- struct{}{}:
	default:
		slog.Error("Frame buffer slot already free on release")
	}
}

// Handle grants exclusive use of one frame until Release.
type Handle struct {
	frame    *Frame
	src      *FrameSource
	released atomic.Bool
}

// Frame returns the held frame, or nil once the handle is released.
func (h *Handle) Frame() *Frame {
	if h.released.Load() {
		return nil
	}
	return h.frame
}

// Release returns the frame buffer to the producer. Extra calls are ignored.
func (h *Handle) Release() {
	if !h.released.CompareAndSwap(false, true) {
		slog.Warn("Frame handle released twice")
		return
	}
	h.src.release(h.frame)
}
