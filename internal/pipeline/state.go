package pipeline

import "fmt"

// State is the single pipeline's lifecycle position. Transitions only move
// forward, except Failed, which is terminal and reachable from any
// non-terminal state.
type State int

const (
	StateIdle State = iota
	StateAttaching
	StateRendering
	StatePostProcessing
	StateReadyForUpload
	StateUploading
	StateDelivered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttaching:
		return "attaching"
	case StateRendering:
		return "rendering"
	case StatePostProcessing:
		return "post-processing"
	case StateReadyForUpload:
		return "ready-for-upload"
	case StateUploading:
		return "uploading"
	case StateDelivered:
		return "delivered"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateFailed
}

// canTransition enforces strictly forward movement plus the Failed escape.
func canTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return to == from+1
}
