//go:build darwin

package camera

import (
	"fmt"
	"os/exec"
	"strconv"
)

// newPlatformProducer captures from the default macOS webcam using ffmpeg.
// This allows local development with actual camera input.
func newPlatformProducer() (Producer, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, &InitError{Reason: ReasonNotFound, Err: fmt.Errorf("ffmpeg not found")}
	}

	return newStreamProducer("ffmpeg", func(cfg Config, size FrameSize) (*exec.Cmd, error) {
		w, h, ok := size.Dimensions()
		if !ok {
			return nil, &InitError{Reason: ReasonNotSupported, Err: fmt.Errorf("frame size %q", size)}
		}
		device := cfg.Device
		if device == "" {
			device = "0" // default camera
		}
		// -framerate MUST be 30 for most Mac cameras (they don't support arbitrary framerates)
		return exec.Command(
			"ffmpeg",
			"-f", "avfoundation",
			"-framerate", "30",
			"-video_size", fmt.Sprintf("%dx%d", w, h),
			"-i", device,
			"-r", strconv.Itoa(cfg.FPS),
			"-f", "mjpeg",
			"-q:v", "5",
			"-hide_banner",
			"-loglevel", "error",
			"-",
		), nil
	}), nil
}
