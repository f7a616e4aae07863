package strip

import (
	"sync"

	"github.com/stagelinkmusic/stagelink/internal/mididev"
	"github.com/stagelinkmusic/stagelink/internal/session"
	"github.com/stagelinkmusic/stagelink/internal/theory"
)

// Sink receives the MIDI events a strip decides to forward; in the host this
// is the channel's loaded instrument. A strip with a nil sink still runs its
// full decisioning and silently discards the output, so a channel with a
// missing instrument degrades to "no sound" rather than failing.
type Sink interface {
	Send(ev mididev.Event)
}

// Context is the active song's scale state plus the chord pad mapping,
// supplied by the engine on every event.
type Context struct {
	Root    int
	Scale   theory.ScaleType
	Mode    theory.FilterMode
	Mapping theory.ChordMapping
}

type voiceKey struct {
	source  string
	channel uint8
	note    uint8
}

// Strip is the per-channel runtime mirroring one ChannelConfiguration. It
// gates incoming events by source and channel, applies scale filtering and
// chord-pad routing, transposes, and forwards to the instrument sink.
//
// Snap results are tracked per voice: a note-on records the pitch it
// actually sounded so the matching note-off releases that pitch even if the
// song (and therefore the snap result) changed while the note was held.
type Strip struct {
	mu   sync.Mutex
	cfg  session.ChannelConfiguration
	sink Sink

	volume float64
	pan    float64
	muted  bool

	voices      map[voiceKey]uint8
	chordVoices map[voiceKey][]int
}

// New creates a strip for a channel configuration
func New(cfg session.ChannelConfiguration, sink Sink) *Strip {
	return &Strip{
		cfg:         cfg,
		sink:        sink,
		volume:      cfg.Volume,
		pan:         cfg.Pan,
		muted:       cfg.IsMuted,
		voices:      map[voiceKey]uint8{},
		chordVoices: map[voiceKey][]int{},
	}
}

// ID returns the underlying channel configuration id
func (s *Strip) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.ID
}

// SetConfig replaces the channel configuration, keeping held voices so
// in-flight notes still release correctly.
func (s *Strip) SetConfig(cfg session.ChannelConfiguration) {
	s.mu.Lock()
	s.cfg = cfg
	s.volume = cfg.Volume
	s.pan = cfg.Pan
	s.muted = cfg.IsMuted
	s.mu.Unlock()
}

// SetSink replaces the instrument sink; nil is allowed
func (s *Strip) SetSink(sink Sink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Volume returns the current audio-domain volume
func (s *Strip) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// SetVolume sets the audio-domain volume, clamped to 0-1
func (s *Strip) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
}

// Pan returns the current pan position
func (s *Strip) Pan() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pan
}

// SetPan sets the pan position, clamped to -1..1
func (s *Strip) SetPan(p float64) {
	if p < -1 {
		p = -1
	}
	if p > 1 {
		p = 1
	}
	s.mu.Lock()
	s.pan = p
	s.mu.Unlock()
}

// Muted reports whether the strip is muted
func (s *Strip) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

// SetMuted sets the mute flag
func (s *Strip) SetMuted(m bool) {
	s.mu.Lock()
	s.muted = m
	s.mu.Unlock()
}

// ApplyPresetState merges a sparse preset patch into the strip's mixer
// state. Absent fields leave the current value untouched.
func (s *Strip) ApplyPresetState(st session.ChannelPresetState) {
	if st.Volume != nil {
		s.SetVolume(*st.Volume)
	}
	if st.Pan != nil {
		s.SetPan(*st.Pan)
	}
	if st.Muted != nil {
		s.SetMuted(*st.Muted)
	}
	// Effect bypass flags are applied by the plugin host, which owns the
	// effect handles; the strip only carries the mixer-domain fields.
}

// Process routes one incoming MIDI event through the strip's decision chain
func (s *Strip) Process(ev mididev.Event, ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Source gate: an unset filter matches every source.
	if s.cfg.MIDISourceName != "" && s.cfg.MIDISourceName != ev.Source {
		return
	}

	// Chord-pad routing replaces note pass-through on the pad channel.
	if s.cfg.IsChordPadTarget && ev.IsNote() && int(ev.Channel)+1 == ctx.Mapping.PadChannel {
		s.processChordLocked(ev, ctx)
		return
	}

	// Channel gate: 0 is omni, otherwise events must match exactly.
	if s.cfg.MIDIChannel != 0 && s.cfg.MIDIChannel != int(ev.Channel)+1 {
		return
	}

	if !ev.IsNote() {
		s.forwardLocked(ev)
		return
	}

	key := voiceKey{source: ev.Source, channel: ev.Channel, note: ev.Note}

	if ev.Type == mididev.EventNoteOff {
		// Release whatever this voice actually sounded; the recorded pitch
		// already includes filtering and transposition.
		if sounded, held := s.voices[key]; held {
			delete(s.voices, key)
			ev.Note = sounded
			s.forwardLocked(ev)
			return
		}
	}

	note := int(ev.Note)
	if s.cfg.ScaleFilterEnabled {
		filtered, ok := theory.FilterNote(note, ctx.Root, ctx.Scale, ctx.Mode)
		if !ok {
			// Blocked: the note-on is dropped entirely and no voice is
			// recorded, so its note-off is dropped here too.
			return
		}
		note = filtered
	}

	note = transpose(note, s.cfg.OctaveTranspose)
	if ev.Type == mididev.EventNoteOn && s.cfg.ScaleFilterEnabled {
		s.voices[key] = uint8(note)
	}

	ev.Note = uint8(note)
	s.forwardLocked(ev)
}

// processChordLocked expands a pad trigger into a triad. Unmapped buttons
// stay silent.
func (s *Strip) processChordLocked(ev mididev.Event, ctx Context) {
	key := voiceKey{source: ev.Source, channel: ev.Channel, note: ev.Note}

	if ev.Type == mididev.EventNoteOff {
		notes, held := s.chordVoices[key]
		if !held {
			return
		}
		delete(s.chordVoices, key)
		for _, n := range notes {
			off := ev
			off.Note = uint8(n)
			s.forwardLocked(off)
		}
		return
	}

	chord, ok := theory.ProcessChordTrigger(int(ev.Note), ctx.Mapping, ctx.Root, ctx.Scale)
	if !ok {
		return
	}
	transposed := make([]int, 0, len(chord))
	for _, n := range chord {
		transposed = append(transposed, transpose(n, s.cfg.OctaveTranspose))
	}
	s.chordVoices[key] = transposed
	for _, n := range transposed {
		on := ev
		on.Note = uint8(n)
		s.forwardLocked(on)
	}
}

func (s *Strip) forwardLocked(ev mididev.Event) {
	if s.sink == nil {
		return
	}
	s.sink.Send(ev)
}

func transpose(note, octaves int) int {
	note += octaves * 12
	if note < 0 {
		return 0
	}
	if note > 127 {
		return 127
	}
	return note
}
