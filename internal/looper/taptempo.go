package looper

import (
	"sync"
	"time"
)

// tapResetGap is the silence after which a tap starts a new measurement
const tapResetGap = 2 * time.Second

// maxTaps bounds how many intervals the average is taken over
const maxTaps = 5

// TapTempo derives a tempo from repeated taps, typically wired to a CC
// button on a controller. The tempo is the mean of the recent tap
// intervals; a long pause starts a fresh measurement.
type TapTempo struct {
	mu   sync.Mutex
	taps []time.Time
	bpm  float64
}

// NewTapTempo returns a tap-tempo tracker with no tempo yet
func NewTapTempo() *TapTempo {
	return &TapTempo{}
}

// Tap registers a tap at the given instant and returns the current BPM
// estimate; 0 means not enough taps yet.
func (t *TapTempo) Tap(at time.Time) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n := len(t.taps); n > 0 && at.Sub(t.taps[n-1]) > tapResetGap {
		t.taps = t.taps[:0]
	}
	t.taps = append(t.taps, at)
	if len(t.taps) > maxTaps {
		t.taps = t.taps[1:]
	}
	if len(t.taps) < 2 {
		return 0
	}

	total := t.taps[len(t.taps)-1].Sub(t.taps[0])
	mean := total / time.Duration(len(t.taps)-1)
	if mean <= 0 {
		return 0
	}
	t.bpm = float64(time.Minute) / float64(mean)
	return t.bpm
}

// BPM returns the last estimate, or 0 when none has been made
func (t *TapTempo) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}
