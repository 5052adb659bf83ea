package device

import (
	"sync/atomic"
	"time"
)

// Status is the process-wide device state. It is created once at startup and
// shared by reference with every component that reads or writes it.
//
// Each field is updated atomically on its own; readers get no cross-field
// consistency guarantee.
type Status struct {
	linkConnected      atomic.Bool
	cameraInitialized  atomic.Bool
	samplerInitialized atomic.Bool
	frameCount         atomic.Uint64
	audioBytes         atomic.Uint64
	recoveries         atomic.Uint64
	captureFailures    atomic.Uint64

	startedAt   time.Time
	checkpoints *Checkpoints
}

// Snapshot is a point-in-time copy of Status.
type Snapshot struct {
	LinkConnected      bool
	CameraInitialized  bool
	SamplerInitialized bool
	FrameCount         uint64
	AudioBytes         uint64
	Recoveries         uint64
	CaptureFailures    uint64
	Uptime             time.Duration
}

// NewStatus creates the device status with an empty checkpoint log.
func NewStatus() *Status {
	return &Status{
		startedAt:   time.Now(),
		checkpoints: NewCheckpoints(DefaultCheckpointCapacity),
	}
}

func (s *Status) SetLinkConnected(v bool)      { s.linkConnected.Store(v) }
func (s *Status) SetCameraInitialized(v bool)  { s.cameraInitialized.Store(v) }
func (s *Status) SetSamplerInitialized(v bool) { s.samplerInitialized.Store(v) }

// IncFrameCount records one frame successfully served to a client.
func (s *Status) IncFrameCount() uint64 { return s.frameCount.Add(1) }

// AddAudioBytes adds n freshly captured audio bytes to the cumulative counter.
func (s *Status) AddAudioBytes(n uint64) uint64 { return s.audioBytes.Add(n) }

func (s *Status) IncRecoveries() uint64      { return s.recoveries.Add(1) }
func (s *Status) IncCaptureFailures() uint64 { return s.captureFailures.Add(1) }

func (s *Status) CameraInitialized() bool  { return s.cameraInitialized.Load() }
func (s *Status) SamplerInitialized() bool { return s.samplerInitialized.Load() }
func (s *Status) FrameCount() uint64       { return s.frameCount.Load() }
func (s *Status) AudioBytes() uint64       { return s.audioBytes.Load() }

// Checkpoints returns the device event log.
func (s *Status) Checkpoints() *Checkpoints {
	return s.checkpoints
}

// Record appends an event to the checkpoint log.
func (s *Status) Record(name string, detail string) {
	s.checkpoints.Add(name, detail)
}

// Snapshot reads every field once.
func (s *Status) Snapshot() Snapshot {
	return Snapshot{
		LinkConnected:      s.linkConnected.Load(),
		CameraInitialized:  s.cameraInitialized.Load(),
		SamplerInitialized: s.samplerInitialized.Load(),
		FrameCount:         s.frameCount.Load(),
		AudioBytes:         s.audioBytes.Load(),
		Recoveries:         s.recoveries.Load(),
		CaptureFailures:    s.captureFailures.Load(),
		Uptime:             time.Since(s.startedAt),
	}
}
