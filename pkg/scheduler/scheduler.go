// Package scheduler runs the capture loops that live alongside request
// handling: a coarse frame loop on cron and a fast audio sampling loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wachiwi/diary-cam/pkg/audio"
	"github.com/wachiwi/diary-cam/pkg/logger"
)

// Filler is the audio side of the pipeline driven by the sampling loop.
type Filler interface {
	Initialized() bool
	FillCycle() (int, error)
}

type Config struct {
	FrameInterval time.Duration `yaml:"frame_interval"`
	AudioInterval time.Duration `yaml:"audio_interval"`
}

func DefaultConfig() Config {
	return Config{
		FrameInterval: time.Second,
		AudioInterval: 100 * time.Millisecond,
	}
}

type Scheduler struct {
	cfg   Config
	audio Filler
	cron  *cron.Cron

	frameTicks atomic.Uint64
	audioFills atomic.Uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New builds the scheduler and registers the frame loop. The cron chain
// skips a tick while the previous run of the same job is still going.
func New(cfg Config, filler Filler, log *slog.Logger) (*Scheduler, error) {
	if log == nil {
		log = slog.Default()
	}
	cl := &logger.CronLogger{Logger: log}

	s := &Scheduler{
		cfg:   cfg,
		audio: filler,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	if _, err := s.cron.AddFunc(every(cfg.FrameInterval), s.frameTick); err != nil {
		return nil, fmt.Errorf("failed to schedule frame loop: %w", err)
	}
	return s, nil
}

// AddJob schedules fn on the shared cron runner, e.g. "@every 30s".
func (s *Scheduler) AddJob(spec string, name string, fn func()) error {
	if _, err := s.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	slog.Info("Scheduled job", "job", name, "spec", spec)
	return nil
}

// frameTick is a reserved slot for periodic frame-side work. Capture
// itself is driven by requests.
func (s *Scheduler) frameTick() {
	n := s.frameTicks.Add(1)
	slog.Debug("Frame loop tick", "tick", n)
}

// Start launches the cron runner and, if the sampler came up, the audio
// loop. Cancelling ctx stops the audio loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	s.cron.Start()
	slog.Info("Frame loop started", "interval", s.cfg.FrameInterval)

	if s.audio == nil || !s.audio.Initialized() {
		slog.Warn("Audio sampler not initialized, audio loop not started")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.audioLoop(ctx)
	}()
}

func (s *Scheduler) audioLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.AudioInterval)
	defer ticker.Stop()
	slog.Info("Audio loop started", "interval", s.cfg.AudioInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Audio loop stopped")
			return
		case <-ticker.C:
			n, err := s.audio.FillCycle()
			if errors.Is(err, audio.ErrNotInitialized) {
				slog.Warn("Audio sampler went away, audio loop exiting")
				return
			}
			if err != nil {
				slog.Warn("Audio fill failed", "error", err)
				continue
			}
			if n > 0 {
				s.audioFills.Add(1)
			}
		}
	}
}

// Stop halts both loops and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// FrameTicks returns how many times the frame loop has run.
func (s *Scheduler) FrameTicks() uint64 {
	return s.frameTicks.Load()
}

// AudioFills returns how many audio fills wrote data.
func (s *Scheduler) AudioFills() uint64 {
	return s.audioFills.Load()
}

func every(d time.Duration) string {
	return fmt.Sprintf("@every %s", d)
}
