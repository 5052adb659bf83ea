//go:build !linux && !darwin

package chime

import "fmt"

func New(volume float64) (Player, error) {
	return nil, fmt.Errorf("audio output not available on this platform")
}
