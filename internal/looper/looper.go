package looper

import (
	"sync"
	"time"

	"github.com/viterin/vek/vek32"
)

// State is the looper's position in its record/play cycle
type State string

const (
	StateEmpty     State = "empty"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
	StatePlaying   State = "playing"
)

// Engine is a single-loop recorder/player fed from a master-bus tap. All
// transitions that make no sense in the current state are silent no-ops.
//
// Feed copies the caller's buffer into pooled storage and returns; it never
// touches disk or network, so the audio thread is safe to call it at
// delivery rate. Buffer pooling follows the tracker-broker pattern of
// recycling audio buffers instead of allocating per callback.
type Engine struct {
	mu         sync.Mutex
	state      State
	sampleRate int
	channels   int

	fragments []*[]float32
	loop      []float32
	pos       int
	volume    float32

	bars int     // 0 = free length, otherwise auto-stop after this many bars
	bpm  float64 // tempo used to time the bar auto-stop

	stopTimer *time.Timer

	pool sync.Pool
}

// New returns an empty looper for the given stream format
func New(sampleRate, channels int) *Engine {
	return &Engine{
		state:      StateEmpty,
		sampleRate: sampleRate,
		channels:   channels,
		volume:     1,
		pool:       sync.Pool{New: func() any { return new([]float32) }},
	}
}

// State returns the current state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Volume returns the playback volume
func (e *Engine) Volume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume sets the playback volume, clamped to 0-1. Volume is a plain
// parameter, not a state transition; it can change in any state.
func (e *Engine) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
}

// SetBarLength configures bar-based recording: bars > 0 auto-stops a
// recording after that many 4-beat bars; 0 records freely.
func (e *Engine) SetBarLength(bars int) {
	e.mu.Lock()
	e.bars = bars
	e.mu.Unlock()
}

// SetBPM sets the tempo the bar auto-stop is computed from. A recording
// already in progress keeps the tempo it started with.
func (e *Engine) SetBPM(bpm float64) {
	e.mu.Lock()
	e.bpm = bpm
	e.mu.Unlock()
}

// BPM returns the current tempo, or 0 when none has been set
func (e *Engine) BPM() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bpm
}

// BarsDuration is the wall-clock length of a bar-based recording: bars of
// four beats each at the given tempo.
func BarsDuration(bars int, bpm float64) time.Duration {
	if bars <= 0 || bpm <= 0 {
		return 0
	}
	seconds := float64(bars) * 4 * 60 / bpm
	return time.Duration(seconds * float64(time.Second))
}

// StartRecording begins a fresh recording, discarding any prior loop. It is
// a no-op while recording or playing. If a bar length and tempo are set, an
// auto-stop is scheduled from the tempo at this instant; later tempo changes
// do not reschedule it.
func (e *Engine) StartRecording() {
	e.mu.Lock()
	if e.state == StateRecording || e.state == StatePlaying {
		e.mu.Unlock()
		return
	}
	e.clearLocked()
	e.state = StateRecording
	var stopAfter time.Duration
	if e.bars > 0 && e.bpm > 0 {
		stopAfter = BarsDuration(e.bars, e.bpm)
	}
	if stopAfter > 0 {
		e.stopTimer = time.AfterFunc(stopAfter, e.StopRecording)
	}
	e.mu.Unlock()
}

// Feed appends one audio buffer to the recording. The buffer is copied, so
// the caller may reuse it immediately. Outside the recording state the
// buffer is ignored.
func (e *Engine) Feed(buf []float32) {
	if len(buf) == 0 {
		return
	}
	e.mu.Lock()
	if e.state != StateRecording {
		e.mu.Unlock()
		return
	}
	frag := e.pool.Get().(*[]float32)
	*frag = append((*frag)[:0], buf...)
	e.fragments = append(e.fragments, frag)
	e.mu.Unlock()
}

// StopRecording finalizes the take. If anything was captured the looper
// goes straight to playing; recording nothing returns it to empty.
func (e *Engine) StopRecording() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateRecording {
		return
	}
	e.cancelStopTimerLocked()
	e.buildLoopLocked()
	if len(e.loop) == 0 {
		e.state = StateEmpty
		return
	}
	// Auto-play on record stop: the performer expects the loop to keep
	// sounding the moment they close it.
	e.pos = 0
	e.state = StatePlaying
}

// StartPlayback replays the recorded loop from the top. It only fires from
// the stopped state with a non-empty loop.
func (e *Engine) StartPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StateStopped {
		return
	}
	e.buildLoopLocked()
	if len(e.loop) == 0 {
		return
	}
	e.pos = 0
	e.state = StatePlaying
}

// StopPlayback halts playback and rewinds; the loop stays available
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePlaying {
		return
	}
	e.pos = 0
	e.state = StateStopped
}

// Clear drops the loop and returns to empty from any state
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelStopTimerLocked()
	e.clearLocked()
	e.state = StateEmpty
}

// Toggle implements single-button looper control: record, close the loop,
// stop playback, replay.
func (e *Engine) Toggle() {
	switch e.State() {
	case StateEmpty:
		e.StartRecording()
	case StateRecording:
		e.StopRecording()
	case StatePlaying:
		e.StopPlayback()
	case StateStopped:
		e.StartPlayback()
	}
}

// Duration returns the recorded loop length in seconds
func (e *Engine) Duration() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	frames := len(e.loop)
	if frames == 0 {
		for _, frag := range e.fragments {
			frames += len(*frag)
		}
	}
	if e.sampleRate == 0 || e.channels == 0 {
		return 0
	}
	return float64(frames) / float64(e.sampleRate*e.channels)
}

// Render fills out with the next slice of looped audio at the current
// volume, wrapping indefinitely. Outside the playing state it writes
// silence.
func (e *Engine) Render(out []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != StatePlaying || len(e.loop) == 0 {
		for i := range out {
			out[i] = 0
		}
		return
	}
	n := 0
	for n < len(out) {
		copied := copy(out[n:], e.loop[e.pos:])
		n += copied
		e.pos += copied
		if e.pos >= len(e.loop) {
			e.pos = 0
		}
	}
	if e.volume != 1 {
		vek32.MulNumber_Inplace(out, e.volume)
	}
}

// buildLoopLocked concatenates the recorded fragments into one contiguous
// buffer and recycles the fragment storage.
func (e *Engine) buildLoopLocked() {
	if len(e.fragments) == 0 {
		return
	}
	total := 0
	for _, frag := range e.fragments {
		total += len(*frag)
	}
	loop := make([]float32, 0, total)
	for _, frag := range e.fragments {
		loop = append(loop, *frag...)
		e.pool.Put(frag)
	}
	e.fragments = nil
	e.loop = loop
}

func (e *Engine) clearLocked() {
	for _, frag := range e.fragments {
		e.pool.Put(frag)
	}
	e.fragments = nil
	e.loop = nil
	e.pos = 0
}

func (e *Engine) cancelStopTimerLocked() {
	if e.stopTimer != nil {
		e.stopTimer.Stop()
		e.stopTimer = nil
	}
}
