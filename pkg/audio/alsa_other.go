//go:build !linux

package audio

import "fmt"

func newALSASampler(device string) (Sampler, error) {
	return nil, fmt.Errorf("alsa capture not available on this platform")
}
