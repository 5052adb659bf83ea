//go:build !linux

package camera

import "fmt"

// NewPowerLine is only backed by hardware on Linux.
func NewPowerLine(chipName string, offset int) (PowerLine, error) {
	if offset < 0 {
		return NoopPowerLine{}, nil
	}
	return nil, fmt.Errorf("gpio power line not available on this platform")
}
