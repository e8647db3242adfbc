package pipeline

import (
	"sync/atomic"
	"time"
)

// Estimator produces the "percent enhanced" figure shown while the render
// runs. The engine exposes no usable progress for short jobs, so the figure
// is cosmetic: elapsed time over the clip's own duration, capped at 99
// until the real completion signal arrives.
type Estimator struct {
	start    time.Time
	expected float64
	done     atomic.Bool
}

// NewEstimator starts the clock at start for a clip expected to take
// roughly expectedSeconds to enhance.
func NewEstimator(start time.Time, expectedSeconds float64) *Estimator {
	return &Estimator{start: start, expected: expectedSeconds}
}

// Percent reports the cosmetic completion figure at now.
func (e *Estimator) Percent(now time.Time) int {
	if e.done.Load() {
		return 100
	}
	if e.expected <= 0 {
		return 0
	}
	pct := int(now.Sub(e.start).Seconds() / e.expected * 100)
	if pct < 0 {
		return 0
	}
	if pct > 99 {
		return 99
	}
	return pct
}

// Complete snaps the estimate to 100.
func (e *Estimator) Complete() {
	e.done.Store(true)
}
