package camera

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	readChunkSize  = 4096
	maxFrameBuffer = 10 * 1024 * 1024
)

// JPEG markers
var (
	soi = []byte{0xFF, 0xD8}
	eoi = []byte{0xFF, 0xD9}
)

// pumpMJPEG reads an MJPEG byte stream, splits it into JPEG images on the
// SOI/EOI markers and hands each complete image to publish. It returns the
// read error that ended the stream (io.EOF on a clean exit).
func pumpMJPEG(r io.Reader, publish func([]byte)) error {
	buf := make([]byte, readChunkSize)
	var frameBuffer []byte
	// scanFrom skips bytes already searched for EOI, minus one in case the
	// marker was split across reads.
	scanFrom := 0

	for {
		n, err := r.Read(buf)
		if n > 0 {
			frameBuffer = append(frameBuffer, buf[:n]...)

			for {
				start := bytes.Index(frameBuffer, soi)
				if start == -1 {
					// Keep a trailing 0xFF, it may be the first half of SOI.
					if len(frameBuffer) > 0 && frameBuffer[len(frameBuffer)-1] == 0xFF {
						frameBuffer = frameBuffer[len(frameBuffer)-1:]
					} else {
						frameBuffer = frameBuffer[:0]
					}
					scanFrom = 0
					break
				}
				if start > 0 {
					frameBuffer = frameBuffer[start:]
					scanFrom = 0
				}

				from := scanFrom
				if from < len(soi) {
					from = len(soi)
				}
				end := bytes.Index(frameBuffer[from:], eoi)
				if end == -1 {
					scanFrom = len(frameBuffer) - 1
					break
				}
				end += from + len(eoi)

				frame := make([]byte, end)
				copy(frame, frameBuffer[:end])
				publish(frame)

				// Anything after EOI is the start of the next frame.
				remaining := len(frameBuffer) - end
				copy(frameBuffer, frameBuffer[end:])
				frameBuffer = frameBuffer[:remaining]
				scanFrom = 0
			}

			// Prevent the buffer from growing indefinitely if no EOI is found
			if len(frameBuffer) > maxFrameBuffer {
				frameBuffer = nil
				scanFrom = 0
				slog.Warn("Frame buffer overflow, resetting")
			}
		}
		if err != nil {
			return err
		}
	}
}

// frameLatch holds the newest complete frame from a stream and lets a
// consumer wait for one newer than the last it saw.
type frameLatch struct {
	mu      sync.Mutex
	frame   []byte
	seq     uint64
	at      time.Time
	updated chan struct{}
}

func newFrameLatch() *frameLatch {
	return &frameLatch{updated: make(chan struct{})}
}

func (l *frameLatch) publish(frame []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = frame
	l.seq++
	l.at = time.Now()
	close(l.updated)
	l.updated = make(chan struct{})
}

// next returns the first frame with a sequence number above after, waiting
// at most timeout. It returns ErrEmpty on timeout.
func (l *frameLatch) next(after uint64, timeout time.Duration) ([]byte, uint64, time.Time, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		if l.seq > after && l.frame != nil {
			frame, seq, at := l.frame, l.seq, l.at
			l.mu.Unlock()
			return frame, seq, at, nil
		}
		wait := l.updated
		l.mu.Unlock()

		select {
		case <-wait:
		case <-deadline.C:
			return nil, 0, time.Time{}, ErrEmpty
		}
	}
}
