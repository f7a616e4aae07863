package engine

import (
	"log"
	"sync"
	"time"

	"github.com/stagelinkmusic/stagelink/internal/looper"
	"github.com/stagelinkmusic/stagelink/internal/mididev"
	"github.com/stagelinkmusic/stagelink/internal/session"
	"github.com/stagelinkmusic/stagelink/internal/strip"
	"github.com/stagelinkmusic/stagelink/internal/theory"
)

// Sender delivers MIDI events to a named output port. The mididev manager
// satisfies it; tests substitute a recorder.
type Sender interface {
	Send(portName string, ev mididev.Event) error
}

// Config wires the engine to its collaborators. Looper, Tap, and Sender are
// optional; a nil collaborator disables the feature it backs.
type Config struct {
	Store  *session.Store
	Rack   *strip.Rack
	Looper *looper.Engine
	Tap    *looper.TapTempo
	Sender Sender

	// MIDIOutput is the port song selection messages are sent to.
	MIDIOutput string
	// TapTempoCC and LooperToggleCC reserve controller numbers for the
	// performer's foot controller; -1 leaves them unbound.
	TapTempoCC     int
	LooperToggleCC int

	// SinkFor resolves a channel's instrument sink during rack syncs.
	SinkFor func(session.ChannelConfiguration) strip.Sink
}

// trigger is a flattened song trigger, cached so the hot note-on path never
// has to clone the session.
type trigger struct {
	songID  string
	source  string
	channel int
	note    int
}

// Engine is the live performance router: it owns the active scale context,
// fans incoming MIDI through the strip rack, matches song triggers, and
// drives the looper's tempo controls.
type Engine struct {
	store  *session.Store
	rack   *strip.Rack
	looper *looper.Engine
	tap    *looper.TapTempo
	sender Sender

	midiOut string
	tapCC   int
	loopCC  int
	sinkFor func(session.ChannelConfiguration) strip.Sink

	mu       sync.Mutex
	ctx      strip.Context
	triggers []trigger
}

// New builds an engine and primes it from the store's current session
func New(cfg Config) *Engine {
	e := &Engine{
		store:   cfg.Store,
		rack:    cfg.Rack,
		looper:  cfg.Looper,
		tap:     cfg.Tap,
		sender:  cfg.Sender,
		midiOut: cfg.MIDIOutput,
		tapCC:   cfg.TapTempoCC,
		loopCC:  cfg.LooperToggleCC,
		sinkFor: cfg.SinkFor,
	}
	e.Reload()
	return e
}

// Reload resyncs the rack and scale context against the stored session. The
// host wires this to the store's change hook so edits from any surface reach
// the live path. Reload never fires selection side effects; those belong to
// an explicit song activation.
func (e *Engine) Reload() {
	sess := e.store.Session()
	e.rack.Sync(sess.Channels, e.sinkFor)
	mapping := e.store.ChordMapping()

	triggers := make([]trigger, 0, len(sess.Songs))
	for i := range sess.Songs {
		t := sess.Songs[i].Trigger
		if t == nil {
			continue
		}
		triggers = append(triggers, trigger{
			songID:  sess.Songs[i].ID,
			source:  t.SourceName,
			channel: t.Channel,
			note:    t.Note,
		})
	}

	e.mu.Lock()
	e.ctx.Mapping = mapping
	if song := sess.ActiveSong(); song != nil {
		e.ctx.Root = song.RootNote
		e.ctx.Scale = song.Scale
		e.ctx.Mode = song.FilterMode
	} else {
		e.ctx.Root = 0
		e.ctx.Scale = theory.ScaleMajor
		e.ctx.Mode = theory.FilterSnap
	}
	e.triggers = triggers
	e.mu.Unlock()
}

// Context returns the scale context currently applied to incoming events
func (e *Engine) Context() strip.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctx
}

// HandleEvent routes one incoming MIDI event. Reserved controller numbers
// and song triggers are consumed here; everything else fans out to the rack.
func (e *Engine) HandleEvent(ev mididev.Event) {
	if ev.Type == mididev.EventControlChange && e.handleControl(ev) {
		return
	}
	if ev.Type == mididev.EventNoteOn && e.matchTrigger(ev) {
		return
	}

	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	e.rack.Process(ev, ctx)
}

// handleControl intercepts the reserved transport controllers. Both edges of
// a reserved CC are consumed; only the press (value > 0) acts, since momentary
// buttons send a value-0 release.
func (e *Engine) handleControl(ev mididev.Event) bool {
	cc := int(ev.Note)
	switch cc {
	case e.tapCC:
		if ev.Velocity > 0 && e.tap != nil {
			if bpm := e.tap.Tap(time.Now()); bpm > 0 && e.looper != nil {
				e.looper.SetBPM(bpm)
			}
		}
		return true
	case e.loopCC:
		if ev.Velocity > 0 && e.looper != nil {
			e.looper.Toggle()
		}
		return true
	}
	return false
}

// matchTrigger activates the first song whose trigger matches the note-on.
// Triggers with an empty source match any source; channel 0 matches any
// channel.
func (e *Engine) matchTrigger(ev mididev.Event) bool {
	e.mu.Lock()
	var songID string
	for _, t := range e.triggers {
		if t.note != int(ev.Note) {
			continue
		}
		if t.source != "" && t.source != ev.Source {
			continue
		}
		if t.channel != 0 && t.channel != int(ev.Channel)+1 {
			continue
		}
		songID = t.songID
		break
	}
	e.mu.Unlock()

	if songID == "" {
		return false
	}
	e.ActivateSong(songID)
	return true
}

// ActivateSong activates a song by id; unknown ids are ignored
func (e *Engine) ActivateSong(id string) {
	sess := e.store.Session()
	for i := range sess.Songs {
		if sess.Songs[i].ID == id {
			e.activate(sess, i, -1)
			return
		}
	}
}

// SelectPreset activates a song and section by position, matching the shape
// of the sync protocol's preset picks. A negative or out-of-range section
// index applies only the song's base state.
func (e *Engine) SelectPreset(songIndex, sectionIndex int) {
	sess := e.store.Session()
	if songIndex < 0 || songIndex >= len(sess.Songs) {
		return
	}
	e.activate(sess, songIndex, sectionIndex)
}

// activate performs the full song recall sequence: persist the active id,
// swap the scale context, patch strip mixer state (base, then section), push
// the tempo to the looper, and fire the song's selection messages.
func (e *Engine) activate(sess *session.Session, songIndex, sectionIndex int) {
	song := &sess.Songs[songIndex]

	// SetActiveSong fires the store change hook, which runs Reload before
	// this returns; the patches below land on the freshly synced rack.
	e.store.SetActiveSong(song.ID)

	e.mu.Lock()
	e.ctx.Root = song.RootNote
	e.ctx.Scale = song.Scale
	e.ctx.Mode = song.FilterMode
	e.mu.Unlock()

	e.rack.ApplySongState(song.ChannelStates)
	if sectionIndex >= 0 && sectionIndex < len(song.Sections) {
		e.rack.ApplySongState(song.Sections[sectionIndex].ChannelStates)
	}

	if song.BPM > 0 && e.looper != nil {
		e.looper.SetBPM(float64(song.BPM))
	}

	e.sendSelectionMessages(song)
}

func (e *Engine) sendSelectionMessages(song *session.PerformanceSong) {
	if e.sender == nil || e.midiOut == "" {
		return
	}
	for _, m := range song.SelectionMessages {
		ev, ok := eventForMessage(m)
		if !ok {
			log.Printf("engine: song %q has unknown message type %q", song.Name, m.Type)
			continue
		}
		if err := e.sender.Send(e.midiOut, ev); err != nil {
			log.Printf("engine: send selection message: %v", err)
		}
	}
}

// eventForMessage translates a stored selection message to a wire event.
// Selection messages carry no channel, so they go out on channel 1.
func eventForMessage(m session.ExternalMIDIMessage) (mididev.Event, bool) {
	ev := mididev.Event{Note: m.Data1, Velocity: m.Data2}
	switch m.Type {
	case session.MessageProgramChange:
		ev.Type = mididev.EventProgramChange
		ev.Velocity = 0
	case session.MessageControlChange:
		ev.Type = mididev.EventControlChange
	case session.MessageNoteOn:
		ev.Type = mididev.EventNoteOn
	case session.MessageNoteOff:
		ev.Type = mididev.EventNoteOff
	default:
		return ev, false
	}
	return ev, true
}
