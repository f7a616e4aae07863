package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagelinkmusic/stagelink/internal/engine"
	"github.com/stagelinkmusic/stagelink/internal/looper"
	"github.com/stagelinkmusic/stagelink/internal/mididev"
	"github.com/stagelinkmusic/stagelink/internal/session"
	"github.com/stagelinkmusic/stagelink/internal/strip"
	"github.com/stagelinkmusic/stagelink/internal/theory"
)

type recordSink struct {
	events []mididev.Event
}

func (r *recordSink) Send(ev mididev.Event) {
	r.events = append(r.events, ev)
}

type recordSender struct {
	port   string
	events []mididev.Event
}

func (r *recordSender) Send(port string, ev mididev.Event) error {
	r.port = port
	r.events = append(r.events, ev)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

type fixture struct {
	engine *engine.Engine
	store  *session.Store
	rack   *strip.Rack
	looper *looper.Engine
	sender *recordSender
	sinks  map[string]*recordSink
	lead   session.ChannelConfiguration
	songA  session.PerformanceSong
	songB  session.PerformanceSong
}

// newFixture builds an engine over an in-memory store with one filtered
// channel and two triggerable songs, wired the way the host wires it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  session.NewStore(session.NewMemKV()),
		rack:   strip.NewRack(),
		looper: looper.New(48000, 2),
		sender: &recordSender{},
		sinks:  map[string]*recordSink{},
	}
	t.Cleanup(f.store.Close)

	f.lead = session.NewChannelConfiguration("Lead")
	f.lead.ScaleFilterEnabled = true
	f.store.AddChannel(f.lead)

	f.songA = session.NewPerformanceSong("Opener")
	f.songA.RootNote = 0
	f.songA.Scale = theory.ScaleMajor
	f.songA.FilterMode = theory.FilterSnap
	f.songA.BPM = 100
	f.songA.Trigger = &session.SongTrigger{Note: 36}
	f.songA.ChannelStates = []session.ChannelPresetState{
		{ChannelID: f.lead.ID, Volume: floatPtr(0.5)},
	}
	f.songA.Sections = []session.SongSection{
		{ID: "sec-a", Name: "Verse"},
		{ID: "sec-b", Name: "Chorus", ChannelStates: []session.ChannelPresetState{
			{ChannelID: f.lead.ID, Volume: floatPtr(0.2)},
		}},
	}
	f.songA.SelectionMessages = []session.ExternalMIDIMessage{
		{Type: session.MessageProgramChange, Data1: 5},
		{Type: session.MessageControlChange, Data1: 7, Data2: 100},
	}
	f.store.AddSong(f.songA)

	f.songB = session.NewPerformanceSong("Ballad")
	f.songB.RootNote = 2
	f.songB.Scale = theory.ScaleDorian
	f.songB.FilterMode = theory.FilterBlock
	f.songB.Trigger = &session.SongTrigger{SourceName: "Pedalboard", Channel: 10, Note: 37}
	f.store.AddSong(f.songB)

	f.engine = engine.New(engine.Config{
		Store:          f.store,
		Rack:           f.rack,
		Looper:         f.looper,
		Tap:            looper.NewTapTempo(),
		Sender:         f.sender,
		MIDIOutput:     "Rig Out",
		TapTempoCC:     81,
		LooperToggleCC: 80,
		SinkFor: func(cfg session.ChannelConfiguration) strip.Sink {
			sink, ok := f.sinks[cfg.ID]
			if !ok {
				sink = &recordSink{}
				f.sinks[cfg.ID] = sink
			}
			return sink
		},
	})
	f.store.SetOnChange(f.engine.Reload)
	return f
}

func (f *fixture) leadSink() *recordSink { return f.sinks[f.lead.ID] }

func noteOn(note uint8) mididev.Event {
	return mididev.Event{Type: mididev.EventNoteOn, Note: note, Velocity: 100, Source: "Keys"}
}

func TestEventsRouteThroughActiveSongContext(t *testing.T) {
	f := newFixture(t)
	f.engine.ActivateSong(f.songA.ID)

	// C# snaps down to C in C major.
	f.engine.HandleEvent(noteOn(61))
	require.Len(t, f.leadSink().events, 1)
	assert.Equal(t, uint8(60), f.leadSink().events[0].Note)
}

func TestTriggerNoteActivatesSong(t *testing.T) {
	f := newFixture(t)

	f.engine.HandleEvent(noteOn(36))

	assert.Equal(t, f.songA.ID, f.store.Session().ActiveSongID)
	ctx := f.engine.Context()
	assert.Equal(t, 0, ctx.Root)
	assert.Equal(t, theory.ScaleMajor, ctx.Scale)

	// Trigger notes are consumed, never forwarded to strips.
	assert.Empty(t, f.leadSink().events)

	// Song recall pushes the tempo and fires the selection messages.
	assert.Equal(t, 100.0, f.looper.BPM())
	require.Len(t, f.sender.events, 2)
	assert.Equal(t, "Rig Out", f.sender.port)
	assert.Equal(t, mididev.EventProgramChange, f.sender.events[0].Type)
	assert.Equal(t, uint8(5), f.sender.events[0].Note)
	assert.Equal(t, mididev.EventControlChange, f.sender.events[1].Type)
	assert.Equal(t, uint8(100), f.sender.events[1].Velocity)
}

func TestTriggerFiltersSourceAndChannel(t *testing.T) {
	f := newFixture(t)

	// Wrong source: note 37 from the keyboard is an ordinary note.
	f.engine.HandleEvent(noteOn(37))
	assert.Empty(t, f.store.Session().ActiveSongID)
	assert.Len(t, f.leadSink().events, 1)

	// Right source, wrong channel.
	f.engine.HandleEvent(mididev.Event{
		Type: mididev.EventNoteOn, Channel: 3, Note: 37, Velocity: 100, Source: "Pedalboard",
	})
	assert.Empty(t, f.store.Session().ActiveSongID)

	// Channel 10 on the wire is index 9.
	f.engine.HandleEvent(mididev.Event{
		Type: mididev.EventNoteOn, Channel: 9, Note: 37, Velocity: 100, Source: "Pedalboard",
	})
	assert.Equal(t, f.songB.ID, f.store.Session().ActiveSongID)
	assert.Equal(t, theory.FilterBlock, f.engine.Context().Mode)
}

func TestSelectPresetLayersSectionOverBase(t *testing.T) {
	f := newFixture(t)

	f.engine.SelectPreset(0, 1)
	st := f.rack.Get(f.lead.ID)
	require.NotNil(t, st)
	assert.Equal(t, 0.2, st.Volume())

	// Re-selecting without a section rolls back to the song's base patch.
	f.engine.SelectPreset(0, -1)
	assert.Equal(t, 0.5, st.Volume())

	// Sections without overrides leave the base patch in place.
	f.engine.SelectPreset(0, 0)
	assert.Equal(t, 0.5, st.Volume())
}

func TestSelectPresetOutOfRangeIgnored(t *testing.T) {
	f := newFixture(t)
	f.engine.SelectPreset(5, 0)
	assert.Empty(t, f.store.Session().ActiveSongID)
}

func TestLooperToggleCC(t *testing.T) {
	f := newFixture(t)

	press := mididev.Event{Type: mididev.EventControlChange, Note: 80, Velocity: 127, Source: "Pedalboard"}
	release := press
	release.Velocity = 0

	f.engine.HandleEvent(press)
	assert.Equal(t, looper.StateRecording, f.looper.State())

	// The release edge is consumed without acting.
	f.engine.HandleEvent(release)
	assert.Equal(t, looper.StateRecording, f.looper.State())
	assert.Empty(t, f.leadSink().events)
}

func TestTapTempoCC(t *testing.T) {
	f := newFixture(t)

	tap := mididev.Event{Type: mididev.EventControlChange, Note: 81, Velocity: 127, Source: "Pedalboard"}
	f.engine.HandleEvent(tap)
	time.Sleep(50 * time.Millisecond)
	f.engine.HandleEvent(tap)

	// Two taps 50ms apart land around 1200 BPM.
	bpm := f.looper.BPM()
	assert.Greater(t, bpm, 400.0)
	assert.Less(t, bpm, 3000.0)
	assert.Empty(t, f.leadSink().events)
}

func TestUnreservedCCReachesStrips(t *testing.T) {
	f := newFixture(t)
	f.engine.HandleEvent(mididev.Event{Type: mididev.EventControlChange, Note: 1, Velocity: 64, Source: "Keys"})
	require.Len(t, f.leadSink().events, 1)
	assert.Equal(t, mididev.EventControlChange, f.leadSink().events[0].Type)
}

func TestReloadTracksChannelEdits(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, 1, f.rack.Len())

	// The change hook resyncs the rack without an explicit Reload call.
	f.store.AddChannel(session.NewChannelConfiguration("Pads"))
	assert.Equal(t, 2, f.rack.Len())

	f.store.DeleteChannel(f.lead.ID)
	assert.Equal(t, 1, f.rack.Len())
	assert.Nil(t, f.rack.Get(f.lead.ID))
}
