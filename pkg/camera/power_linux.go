//go:build linux

package camera

import (
	"fmt"
	"log/slog"

	"github.com/warthog618/go-gpiocdev"
)

// gpioPowerLine toggles the sensor PWDN pin through the GPIO character device.
// PWDN is active high: 1 powers the sensor down.
type gpioPowerLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewPowerLine requests the PWDN line as an output driven low (sensor on).
// A negative offset means the pin is not wired.
func NewPowerLine(chipName string, offset int) (PowerLine, error) {
	if offset < 0 {
		return NoopPowerLine{}, nil
	}
	c, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	l, err := c.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to request pwdn line %d: %w", offset, err)
	}
	slog.Info("Camera power line ready", "chip", chipName, "offset", offset)
	return &gpioPowerLine{chip: c, line: l}, nil
}

func (p *gpioPowerLine) PowerDown() error {
	return p.line.SetValue(1)
}

func (p *gpioPowerLine) PowerUp() error {
	return p.line.SetValue(0)
}

// Close releases all GPIO resources.
func (p *gpioPowerLine) Close() error {
	err := p.line.Close()
	if cerr := p.chip.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
