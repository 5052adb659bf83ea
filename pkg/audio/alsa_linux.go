//go:build linux

package audio

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
)

// alsaSampler streams raw PCM from an arecord process into a bounded
// buffer that FillCycle drains.
type alsaSampler struct {
	device string
	path   string

	mu      sync.Mutex
	cmd     *exec.Cmd
	buf     []byte
	limit   int
	readErr error
}

func newALSASampler(device string) (Sampler, error) {
	path, err := exec.LookPath("arecord")
	if err != nil {
		return nil, fmt.Errorf("arecord not found in PATH: %w", err)
	}
	if device == "" {
		device = "default"
	}
	return &alsaSampler{device: device, path: path}, nil
}

func (s *alsaSampler) Init(sampleRate, bitDepth, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return &InitError{Err: fmt.Errorf("arecord already running")}
	}
	if bitDepth != 16 {
		return &InitError{Err: fmt.Errorf("unsupported bit depth %d", bitDepth)}
	}

	cmd := exec.Command(s.path,
		"-D", s.device,
		"-f", "S16_LE",
		"-r", strconv.Itoa(sampleRate),
		"-c", strconv.Itoa(channels),
		"-t", "raw",
		"-q",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &InitError{Err: fmt.Errorf("failed to get stdout pipe: %w", err)}
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return &InitError{Err: fmt.Errorf("failed to start arecord: %w, stderr: %s", err, stderr.String())}
	}
	s.cmd = cmd
	// One second of audio, the same headroom the simulated driver keeps.
	s.limit = sampleRate * channels * bitDepth / 8
	s.buf = s.buf[:0]
	s.readErr = nil

	slog.Info("Started audio capture", "device", s.device, "rate", sampleRate, "channels", channels)

	go s.pump(stdout)
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Warn("arecord exited", "error", err, "stderr", stderr.String())
		}
	}()
	return nil
}

func (s *alsaSampler) pump(r io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf = append(s.buf, chunk[:n]...)
			if over := len(s.buf) - s.limit; over > 0 {
				// Drop the oldest audio, keeping sample alignment.
				over += over % 2
				s.buf = s.buf[over:]
			}
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.readErr = err
			s.mu.Unlock()
			return
		}
	}
}

func (s *alsaSampler) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

func (s *alsaSampler) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd == nil {
		return 0, ErrNotInitialized
	}
	if len(s.buf) == 0 && s.readErr != nil {
		return 0, s.readErr
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *alsaSampler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	err := s.cmd.Process.Kill()
	s.cmd = nil
	return err
}
