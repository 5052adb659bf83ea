package camera

import "time"

// State is the FrameSource lifecycle.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateRecovering
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRecovering:
		return "recovering"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// RecoveryPolicy bounds the deinit/reinit sequence run after a failed grab.
type RecoveryPolicy struct {
	// Attempts is the number of reinit+retry rounds per failed acquire.
	Attempts int
	// Pause separates deinit from reinit, and power-down from power-up.
	Pause time.Duration
}

// DefaultRecoveryPolicy is one reinit and one retry after a 100ms pause.
func DefaultRecoveryPolicy() RecoveryPolicy {
	return RecoveryPolicy{Attempts: 1, Pause: 100 * time.Millisecond}
}

// next is the transition table. ok reports whether the event applies to from.
func next(from State, ev event) (State, bool) {
	switch ev {
	case evInitOK:
		return StateReady, from == StateUninitialized || from == StateRecovering
	case evInitFailed:
		return from, from == StateUninitialized || from == StateRecovering
	case evGrabFailed:
		return StateRecovering, from == StateReady || from == StateDegraded
	case evRecovered:
		return StateReady, from == StateRecovering
	case evRecoveryFailed:
		return StateDegraded, from == StateRecovering
	}
	return from, false
}

type event int

const (
	evInitOK event = iota
	evInitFailed
	evGrabFailed
	evRecovered
	evRecoveryFailed
)
