//go:build !darwin && !(linux && arm64)

package camera

import "fmt"

// newPlatformProducer has no hardware backend on this platform.
func newPlatformProducer() (Producer, error) {
	return nil, &InitError{Reason: ReasonNotFound, Err: fmt.Errorf("raspberry pi camera not available on this platform")}
}
