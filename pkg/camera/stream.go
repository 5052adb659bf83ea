package camera

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// commandFunc builds the capture process for a config and frame size. The
// process must write an MJPEG stream to stdout.
type commandFunc func(cfg Config, size FrameSize) (*exec.Cmd, error)

// streamProducer runs a persistent capture process and serves the frames it
// streams. This avoids restarting the camera hardware for every frame.
type streamProducer struct {
	name        string
	command     commandFunc
	exitTimeout time.Duration

	mu          sync.Mutex
	cfg         Config
	size        FrameSize
	cmd         *exec.Cmd
	latch       *frameLatch
	lastSeq     uint64
	outstanding bool
	exited      *atomic.Bool
	done        chan struct{} // closed once the process has been reaped
}

func newStreamProducer(name string, command commandFunc) *streamProducer {
	return &streamProducer{name: name, command: command}
}

func (p *streamProducer) Init(cfg Config) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd != nil {
		return &InitError{Reason: ReasonInvalidState, Err: fmt.Errorf("%s already running", p.name)}
	}
	p.cfg = cfg
	p.size = cfg.FrameSize
	return p.start()
}

// start launches the capture process. Called with p.mu held.
func (p *streamProducer) start() error {
	cmd, err := p.command(p.cfg, p.size)
	if err != nil {
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &InitError{Reason: ReasonUnknown, Err: fmt.Errorf("failed to get stdout pipe: %w", err)}
	}

	// Capture stderr for debugging
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// Children that inherited stderr must not hold up Wait after a kill.
	cmd.WaitDelay = time.Second

	if err := cmd.Start(); err != nil {
		return &InitError{Reason: ReasonNotFound, Err: fmt.Errorf("failed to start %s: %w, stderr: %s", p.name, err, stderr.String())}
	}

	latch := newFrameLatch()
	exited := &atomic.Bool{}
	done := make(chan struct{})
	p.cmd = cmd
	p.latch = latch
	p.lastSeq = 0
	p.outstanding = false
	p.exited = exited
	p.done = done

	w, h, _ := p.size.Dimensions()
	slog.Info("Started camera streaming process", "command", p.name, "width", w, "height", h, "fps", p.cfg.FPS)

	go func() {
		err := pumpMJPEG(stdout, latch.publish)
		slog.Debug("Camera stream ended", "command", p.name, "error", err)
	}()

	go func() {
		err := cmd.Wait()
		exited.Store(true)
		close(done)
		if err != nil {
			slog.Warn("Camera streaming process exited", "command", p.name, "error", err, "stderr", stderr.String())
		} else {
			slog.Info("Camera streaming process exited cleanly", "command", p.name)
		}
	}()

	return nil
}

// stop kills the capture process and waits until it has exited, so the
// camera device is free before the next start. Called with p.mu held.
func (p *streamProducer) stop() error {
	if p.cmd == nil {
		return nil
	}
	var err error
	if !p.exited.Load() && p.cmd.Process != nil {
		if kerr := p.cmd.Process.Kill(); kerr != nil && !errors.Is(kerr, os.ErrProcessDone) {
			err = kerr
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.stopTimeout()):
		err = fmt.Errorf("%s did not exit within %s", p.name, p.stopTimeout())
	}

	p.cmd = nil
	p.latch = nil
	p.outstanding = false
	return err
}

func (p *streamProducer) stopTimeout() time.Duration {
	if p.exitTimeout > 0 {
		return p.exitTimeout
	}
	return defaultExitTimeout
}

func (p *streamProducer) Deinit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop()
}

// SetFrameSize restarts the capture process when the size changes.
func (p *streamProducer) SetFrameSize(size FrameSize) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !size.Valid() {
		return fmt.Errorf("unknown frame size %q", size)
	}
	if p.cmd == nil {
		return fmt.Errorf("%s not running", p.name)
	}
	if size == p.size {
		return nil
	}
	if err := p.stop(); err != nil {
		slog.Warn("Failed to stop capture process for resize", "error", err)
	}
	p.size = size
	return p.start()
}

// Grab waits up to GrabTimeout for a frame newer than the last one handed out.
func (p *streamProducer) Grab() (*Frame, error) {
	p.mu.Lock()
	if p.cmd == nil || p.exited.Load() || p.outstanding {
		p.mu.Unlock()
		return nil, ErrEmpty
	}
	latch, after, timeout, size := p.latch, p.lastSeq, p.cfg.GrabTimeout, p.size
	p.mu.Unlock()

	if after == 0 && timeout < startupGrace {
		timeout = startupGrace
	}

	data, seq, at, err := latch.next(after, timeout)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latch != latch {
		// Restarted while waiting; the frame belongs to a dead process.
		return nil, ErrEmpty
	}
	p.lastSeq = seq
	p.outstanding = true

	w, h, _ := size.Dimensions()
	return &Frame{
		Data:      data,
		Width:     w,
		Height:    h,
		Format:    FormatJPEG,
		Timestamp: at,
		Seq:       seq,
	}, nil
}

func (p *streamProducer) Return(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding = false
}

const (
	// startupGrace is how long a freshly started process may take to emit its first frame.
	startupGrace = 3 * time.Second
	// defaultExitTimeout bounds the wait for a killed process to be reaped.
	defaultExitTimeout = 5 * time.Second
)
