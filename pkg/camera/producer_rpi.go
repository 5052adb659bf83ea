//go:build linux && arm64

package camera

import (
	"fmt"
	"os/exec"
	"strconv"
)

// newPlatformProducer streams MJPEG from libcamera-apps/rpicam-apps, which
// handles the Camera Module v3's ISP.
func newPlatformProducer() (Producer, error) {
	// rpicam-vid for newer OS, libcamera-vid for older
	cmdName := "rpicam-vid"
	if _, err := exec.LookPath(cmdName); err != nil {
		cmdName = "libcamera-vid"
		if _, err := exec.LookPath(cmdName); err != nil {
			return nil, &InitError{Reason: ReasonNotFound, Err: fmt.Errorf("neither rpicam-vid nor libcamera-vid found")}
		}
	}

	return newStreamProducer(cmdName, func(cfg Config, size FrameSize) (*exec.Cmd, error) {
		w, h, ok := size.Dimensions()
		if !ok {
			return nil, &InitError{Reason: ReasonNotSupported, Err: fmt.Errorf("frame size %q", size)}
		}
		args := []string{
			"--width", strconv.Itoa(w),
			"--height", strconv.Itoa(h),
			"--timeout", "0", // Run indefinitely
			"--nopreview",
			"--codec", "mjpeg",
			"--quality", strconv.Itoa(goJPEGQuality(cfg.JPEGQuality)),
			"--output", "-",
			"--framerate", strconv.Itoa(cfg.FPS),
			// Module 3 specific optimizations
			"--awb", "auto",
			"--metering", "average",
		}
		if cfg.Device != "" {
			args = append(args, "--camera", cfg.Device)
		}
		return exec.Command(cmdName, args...), nil
	}), nil
}
