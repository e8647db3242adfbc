package transfer

import "sync"

// Progress is a snapshot of one upload's state. The uploader is the only
// writer; the orchestrator and wizard read it for display and may observe
// slightly stale values.
type Progress struct {
	Fraction            float64
	EstimatedSecsRemain int
	Done                bool
	Reference           string
	ShareLink           string
}

// Tracker republishes Progress snapshots under single-writer discipline.
type Tracker struct {
	mu  sync.RWMutex
	cur Progress
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Snapshot returns the latest published progress.
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cur
}

// update publishes a new fraction/ETA pair. Fractions never regress.
func (t *Tracker) update(fraction float64, etaSeconds int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if fraction > t.cur.Fraction {
		t.cur.Fraction = fraction
	}
	if etaSeconds < 0 {
		etaSeconds = 0
	}
	t.cur.EstimatedSecsRemain = etaSeconds
}

// finish records the terminal state with the durable reference.
func (t *Tracker) finish(reference, shareLink string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Fraction = 1
	t.cur.EstimatedSecsRemain = 0
	t.cur.Done = true
	t.cur.Reference = reference
	t.cur.ShareLink = shareLink
}
