package camera

import (
	"fmt"
	"time"
)

// Pins is the sensor wiring. -1 marks a pin that is not connected.
type Pins struct {
	D0    int `yaml:"d0"`
	D1    int `yaml:"d1"`
	D2    int `yaml:"d2"`
	D3    int `yaml:"d3"`
	D4    int `yaml:"d4"`
	D5    int `yaml:"d5"`
	D6    int `yaml:"d6"`
	D7    int `yaml:"d7"`
	XCLK  int `yaml:"xclk"`
	PCLK  int `yaml:"pclk"`
	VSYNC int `yaml:"vsync"`
	HREF  int `yaml:"href"`
	SDA   int `yaml:"sda"`
	SCL   int `yaml:"scl"`
	PWDN  int `yaml:"pwdn"`
	RESET int `yaml:"reset"`
}

// Config holds camera configuration. It is read-only after the first
// Initialize and is reused verbatim for every recovery.
type Config struct {
	Backend     string        `yaml:"backend"` // auto, sim, rpicam, ffmpeg
	Pins        Pins          `yaml:"pins"`
	XCLKFreqHz  int           `yaml:"xclk_freq_hz"`
	FrameSize   FrameSize     `yaml:"frame_size"`
	PixelFormat PixelFormat   `yaml:"pixel_format"`
	JPEGQuality int           `yaml:"jpeg_quality"` // 0-63, lower is better
	FBCount     int           `yaml:"fb_count"`
	FBLocation  string        `yaml:"fb_location"` // psram or dram
	GrabMode    string        `yaml:"grab_mode"`   // when_empty or latest
	FPS         int           `yaml:"fps"`
	GrabTimeout time.Duration `yaml:"grab_timeout"`
	GPIOChip    string        `yaml:"gpio_chip"`
	Device      string        `yaml:"device"`
}

// DefaultConfig matches the XIAO ESP32S3 Sense wiring and the sensor
// settings the firmware shipped with.
func DefaultConfig() Config {
	return Config{
		Backend: "auto",
		Pins: Pins{
			D0: 15, D1: 17, D2: 18, D3: 16, D4: 14, D5: 12, D6: 11, D7: 48,
			XCLK: 10, PCLK: 13, VSYNC: 38, HREF: 47, SDA: 40, SCL: 39,
			PWDN: -1, RESET: -1,
		},
		XCLKFreqHz:  20000000,
		FrameSize:   FrameSizeUXGA,
		PixelFormat: FormatJPEG,
		JPEGQuality: 12,
		FBCount:     1,
		FBLocation:  "psram",
		GrabMode:    "when_empty",
		FPS:         15,
		GrabTimeout: 2 * time.Second,
		GPIOChip:    "gpiochip0",
	}
}

// Validate rejects settings no producer can honor.
func (c Config) Validate() error {
	if !c.FrameSize.Valid() {
		return fmt.Errorf("unknown frame size %q", c.FrameSize)
	}
	if c.PixelFormat != FormatJPEG {
		return fmt.Errorf("unsupported pixel format %q", c.PixelFormat)
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 63 {
		return fmt.Errorf("jpeg quality %d out of range 0-63", c.JPEGQuality)
	}
	if c.FBCount < 1 {
		return fmt.Errorf("fb_count must be at least 1")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if c.GrabTimeout <= 0 {
		return fmt.Errorf("grab_timeout must be positive")
	}
	return nil
}

// goJPEGQuality maps the sensor's 0-63 scale (lower is better) onto
// image/jpeg's 1-100 scale.
func goJPEGQuality(q int) int {
	v := 100 - q*100/63
	if v < 1 {
		v = 1
	}
	if v > 100 {
		v = 100
	}
	return v
}
