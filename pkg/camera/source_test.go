package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wachiwi/diary-cam/pkg/device"
)

type fakePowerLine struct {
	downs, ups int
}

func (f *fakePowerLine) PowerDown() error { f.downs++; return nil }
func (f *fakePowerLine) PowerUp() error   { f.ups++; return nil }
func (f *fakePowerLine) Close() error     { return nil }

func newTestSource(t *testing.T) (*FrameSource, *SimProducer, *device.Status) {
	t.Helper()
	sim := NewSimProducer()
	status := device.NewStatus()
	src := NewFrameSource(sim, status, WithRecoveryPolicy(RecoveryPolicy{Attempts: 1, Pause: 0}))
	return src, sim, status
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = "sim"
	return cfg
}

func TestAcquireUninitialized(t *testing.T) {
	src, sim, _ := newTestSource(t)

	h, err := src.Acquire(context.Background())
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Expected ErrNotInitialized, got %v", err)
	}
	if h != nil {
		t.Error("Expected nil handle")
	}
	if sim.InitCalls() != 0 {
		t.Errorf("Acquire on an uninitialized source must not touch the producer, got %d init calls", sim.InitCalls())
	}
}

func TestInitializeFailure(t *testing.T) {
	src, sim, status := newTestSource(t)
	sim.FailInit(&InitError{Reason: ReasonNotFound})

	err := src.Initialize(testConfig())
	var ie *InitError
	if !errors.As(err, &ie) {
		t.Fatalf("Expected *InitError, got %v", err)
	}
	if ie.Reason != ReasonNotFound {
		t.Errorf("Expected reason not_found, got %s", ie.Reason)
	}
	if src.State() != StateUninitialized {
		t.Errorf("Expected uninitialized, got %s", src.State())
	}
	if status.CameraInitialized() {
		t.Error("camera_initialized should be false")
	}

	// Degraded mode: every acquire fails fast without retrying init.
	if _, err := src.Acquire(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
	if sim.InitCalls() != 1 {
		t.Errorf("Expected 1 init call, got %d", sim.InitCalls())
	}
}

func TestInitializeUnclassifiedError(t *testing.T) {
	src, sim, _ := newTestSource(t)
	sim.FailInit(errors.New("i2c timeout"))

	err := src.Initialize(testConfig())
	var ie *InitError
	if !errors.As(err, &ie) || ie.Reason != ReasonUnknown {
		t.Fatalf("Expected unknown InitError, got %v", err)
	}
}

func TestInitializeTwice(t *testing.T) {
	src, _, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}
	err := src.Initialize(testConfig())
	var ie *InitError
	if !errors.As(err, &ie) || ie.Reason != ReasonInvalidState {
		t.Errorf("Expected invalid_state, got %v", err)
	}
}

func TestInitializeForcesRecoveryProfile(t *testing.T) {
	src, sim, status := newTestSource(t)
	cfg := testConfig()
	cfg.FrameSize = FrameSizeUXGA

	if err := src.Initialize(cfg); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if src.State() != StateReady {
		t.Errorf("Expected ready, got %s", src.State())
	}
	if !status.CameraInitialized() {
		t.Error("camera_initialized should be true")
	}
	if sim.FrameSize() != RecoveryProfile {
		t.Errorf("Expected %s after init, got %s", RecoveryProfile, sim.FrameSize())
	}
	if src.Config().FrameSize != FrameSizeUXGA {
		t.Error("stored config must keep the configured frame size")
	}
}

func TestSequentialAcquireRelease(t *testing.T) {
	src, sim, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		h, err := src.Acquire(context.Background())
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		f := h.Frame()
		if f.Len() < 2 || f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
			t.Errorf("Expected JPEG data, got %d bytes", f.Len())
		}
		if sim.Outstanding() != 1 {
			t.Errorf("Expected 1 outstanding frame, got %d", sim.Outstanding())
		}
		h.Release()
		if sim.Outstanding() != 0 {
			t.Errorf("Expected 0 outstanding frames after release, got %d", sim.Outstanding())
		}
	}
	if sim.InitCalls() != 1 {
		t.Errorf("No recovery expected, got %d init calls", sim.InitCalls())
	}
}

func TestAtMostOneOutstanding(t *testing.T) {
	src, _, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}

	h, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := src.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("Expected ErrPoolExhausted while a frame is held, got %v", err)
	}

	h.Release()

	h2, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	h2.Release()
}

func TestDoubleReleaseDoesNotDuplicateSlot(t *testing.T) {
	src, _, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}

	h, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	h.Release()
	h.Release()
	if h.Frame() != nil {
		t.Error("released handle should not expose its frame")
	}

	first, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer first.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := src.Acquire(ctx); !errors.Is(err, ErrPoolExhausted) {
		t.Errorf("Expected a single slot after double release, got %v", err)
	}
}

func TestRecoveryAfterEmptyGrab(t *testing.T) {
	src, sim, status := newTestSource(t)
	power := &fakePowerLine{}
	src.power = power
	var pauses []time.Duration
	src.sleep = func(d time.Duration) { pauses = append(pauses, d) }
	src.policy = DefaultRecoveryPolicy()

	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}
	sim.FailGrabs(1)

	h, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Expected recovery to succeed, got %v", err)
	}
	defer h.Release()

	f := h.Frame()
	if f.Width != 640 || f.Height != 480 {
		t.Errorf("Expected 640x480 after recovery, got %dx%d", f.Width, f.Height)
	}
	if sim.DeinitCalls() != 1 || sim.InitCalls() != 2 {
		t.Errorf("Expected one deinit and one reinit, got %d/%d", sim.DeinitCalls(), sim.InitCalls())
	}
	if power.downs != 1 || power.ups != 1 {
		t.Errorf("Expected one power cycle, got down=%d up=%d", power.downs, power.ups)
	}
	if len(pauses) != 2 || pauses[0] != 100*time.Millisecond || pauses[1] != 100*time.Millisecond {
		t.Errorf("Expected two 100ms pauses, got %v", pauses)
	}
	if src.State() != StateReady {
		t.Errorf("Expected ready, got %s", src.State())
	}
	if status.Snapshot().Recoveries != 1 {
		t.Errorf("Expected 1 recovery, got %d", status.Snapshot().Recoveries)
	}
}

func TestRecoveryRetriesOnlyOnce(t *testing.T) {
	src, sim, status := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}
	sim.FailGrabs(2)

	if _, err := src.Acquire(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty, got %v", err)
	}
	if sim.InitCalls() != 2 {
		t.Errorf("Expected exactly one reinit, got %d init calls", sim.InitCalls())
	}
	if src.State() != StateDegraded {
		t.Errorf("Expected degraded, got %s", src.State())
	}
	if status.CameraInitialized() {
		t.Error("camera_initialized should be false while degraded")
	}

	// Degraded is not terminal: the next acquire recovers.
	h, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Expected recovery from degraded, got %v", err)
	}
	h.Release()
	if src.State() != StateReady {
		t.Errorf("Expected ready, got %s", src.State())
	}
	if sim.InitCalls() != 3 {
		t.Errorf("Expected 3 init calls, got %d", sim.InitCalls())
	}
}

func TestRecoveryReinitFailure(t *testing.T) {
	src, sim, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}
	sim.FailGrabs(1)
	sim.FailInit(&InitError{Reason: ReasonNoMem})

	if _, err := src.Acquire(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Expected ErrEmpty, got %v", err)
	}
	if src.State() != StateDegraded {
		t.Errorf("Expected degraded, got %s", src.State())
	}

	sim.FailInit(nil)
	h, err := src.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Expected recovery once init works again, got %v", err)
	}
	h.Release()
}

func TestFailedAcquireReturnsSlot(t *testing.T) {
	src, sim, _ := newTestSource(t)
	if err := src.Initialize(testConfig()); err != nil {
		t.Fatal(err)
	}
	sim.FailGrabs(2)
	if _, err := src.Acquire(context.Background()); err == nil {
		t.Fatal("Expected failure")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h, err := src.Acquire(ctx)
	if err != nil {
		t.Fatalf("slot should be free after a failed acquire: %v", err)
	}
	h.Release()
}

func TestStateTransitions(t *testing.T) {
	cases := []struct {
		from State
		ev   event
		to   State
		ok   bool
	}{
		{StateUninitialized, evInitOK, StateReady, true},
		{StateUninitialized, evInitFailed, StateUninitialized, true},
		{StateUninitialized, evGrabFailed, StateUninitialized, false},
		{StateReady, evGrabFailed, StateRecovering, true},
		{StateRecovering, evRecovered, StateReady, true},
		{StateRecovering, evRecoveryFailed, StateDegraded, true},
		{StateDegraded, evGrabFailed, StateRecovering, true},
		{StateReady, evRecovered, StateReady, false},
	}
	for _, c := range cases {
		to, ok := next(c.from, c.ev)
		if ok != c.ok || (ok && to != c.to) {
			t.Errorf("next(%s, %d) = %s, %v; want %s, %v", c.from, c.ev, to, ok, c.to, c.ok)
		}
	}
}
