package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stagelinkmusic/stagelink/internal/theory"
)

// Decode defaults for fields absent from older persisted blobs, plus the
// effect chain slot limit enforced on channel mutations.
const (
	DefaultChannelVolume = 0.8
	DefaultMasterVolume  = 0.8
	MaxEffectSlots       = 4
)

// PluginConfiguration identifies an instrument or effect plus its saved
// state. State is an opaque blob owned by the plugin host collaborator; it is
// persisted and restored verbatim, never interpreted here.
type PluginConfiguration struct {
	Name             string `json:"name"`
	Manufacturer     string `json:"manufacturer"`
	Type             string `json:"type"`
	Subtype          string `json:"subtype"`
	ManufacturerCode string `json:"manufacturer_code"`
	State            []byte `json:"state,omitempty"`
	IsBypassed       bool   `json:"is_bypassed"`
}

// ChannelConfiguration is the persistent shape of one channel strip
type ChannelConfiguration struct {
	ID                 string                `json:"id"`
	Name               string                `json:"name"`
	Instrument         *PluginConfiguration  `json:"instrument,omitempty"`
	Effects            []PluginConfiguration `json:"effects"`
	Volume             float64               `json:"volume"`
	Pan                float64               `json:"pan"`
	IsMuted            bool                  `json:"is_muted"`
	MIDIChannel        int                   `json:"midi_channel"` // 0 = omni, 1-16 = fixed
	MIDISourceName     string                `json:"midi_source_name,omitempty"`
	ScaleFilterEnabled bool                  `json:"scale_filter_enabled"`
	IsChordPadTarget   bool                  `json:"is_chord_pad_target"`
	OctaveTranspose    int                   `json:"octave_transpose"`
}

// UnmarshalJSON fills defaults for fields missing from older session blobs
func (c *ChannelConfiguration) UnmarshalJSON(data []byte) error {
	type alias ChannelConfiguration
	aux := struct {
		Volume *float64 `json:"volume"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Volume != nil {
		c.Volume = *aux.Volume
	} else {
		c.Volume = DefaultChannelVolume
	}
	if c.Effects == nil {
		c.Effects = []PluginConfiguration{}
	}
	return nil
}

// NewChannelConfiguration returns a channel with a fresh id and defaults
func NewChannelConfiguration(name string) ChannelConfiguration {
	return ChannelConfiguration{
		ID:      uuid.New().String(),
		Name:    name,
		Effects: []PluginConfiguration{},
		Volume:  DefaultChannelVolume,
	}
}

// ChannelPresetState is a sparse per-channel override stored in a song or
// section. A nil field means "leave the channel's current value alone"; only
// present fields are applied. This is a patch, never a full snapshot.
type ChannelPresetState struct {
	ChannelID      string   `json:"channel_id"`
	Volume         *float64 `json:"volume,omitempty"`
	Pan            *float64 `json:"pan,omitempty"`
	Muted          *bool    `json:"muted,omitempty"`
	EffectBypasses []bool   `json:"effect_bypasses,omitempty"`
}

// SongSection is a selectable subdivision of a song (verse, chorus, ...)
// carrying its own sparse channel overrides on top of the song's base patch.
type SongSection struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	ChannelStates []ChannelPresetState `json:"channel_states,omitempty"`
}

// NewSongSection returns a section with a fresh id
func NewSongSection(name string) SongSection {
	return SongSection{ID: uuid.New().String(), Name: name}
}

// MIDIMessageType enumerates the external messages a song can fire
type MIDIMessageType string

const (
	MessageProgramChange MIDIMessageType = "program_change"
	MessageControlChange MIDIMessageType = "control_change"
	MessageNoteOn        MIDIMessageType = "note_on"
	MessageNoteOff       MIDIMessageType = "note_off"
)

// ExternalMIDIMessage is sent out the MIDI output when its song is selected.
// Data2 is ignored for program changes.
type ExternalMIDIMessage struct {
	Type  MIDIMessageType `json:"type"`
	Data1 uint8           `json:"data1"`
	Data2 uint8           `json:"data2"`
}

// SongTrigger matches an incoming MIDI note that should select the song.
// Empty source matches any source; channel 0 matches any channel.
type SongTrigger struct {
	SourceName string `json:"source_name,omitempty"`
	Channel    int    `json:"channel,omitempty"`
	Note       int    `json:"note"`
}

// PerformanceSong is a recallable preset: key, scale, filter mode, tempo,
// plus sparse channel overrides and optional setlist sections.
type PerformanceSong struct {
	ID                string                `json:"id"`
	Name              string                `json:"name"`
	RootNote          int                   `json:"root_note"` // pitch class 0-11
	Scale             theory.ScaleType      `json:"scale"`
	FilterMode        theory.FilterMode     `json:"filter_mode"`
	BPM               int                   `json:"bpm,omitempty"` // 0 = unset
	ChannelStates     []ChannelPresetState  `json:"channel_states,omitempty"`
	Sections          []SongSection         `json:"sections,omitempty"`
	Order             int                   `json:"order"`
	Trigger           *SongTrigger          `json:"trigger,omitempty"`
	SelectionMessages []ExternalMIDIMessage `json:"selection_messages,omitempty"`
}

// UnmarshalJSON fills defaults for older blobs missing scale fields
func (s *PerformanceSong) UnmarshalJSON(data []byte) error {
	type alias PerformanceSong
	if err := json.Unmarshal(data, (*alias)(s)); err != nil {
		return err
	}
	if s.Scale == "" {
		s.Scale = theory.ScaleMajor
	}
	if s.FilterMode == "" {
		s.FilterMode = theory.FilterSnap
	}
	return nil
}

// NewPerformanceSong returns a song with a fresh id and C major defaults
func NewPerformanceSong(name string) PerformanceSong {
	return PerformanceSong{
		ID:         uuid.New().String(),
		Name:       name,
		Scale:      theory.ScaleMajor,
		FilterMode: theory.FilterSnap,
	}
}

// ChannelState returns the song's base override for a channel, if present
func (s *PerformanceSong) ChannelState(channelID string) (ChannelPresetState, bool) {
	for _, st := range s.ChannelStates {
		if st.ChannelID == channelID {
			return st, true
		}
	}
	return ChannelPresetState{}, false
}

// Session is the root of the persistent data model
type Session struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Channels     []ChannelConfiguration `json:"channels"`
	MasterVolume float64                `json:"master_volume"`
	Songs        []PerformanceSong      `json:"songs"`
	ActiveSongID string                 `json:"active_song_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// UnmarshalJSON normalizes nil slices and fills the master volume default
func (s *Session) UnmarshalJSON(data []byte) error {
	type alias Session
	aux := struct {
		MasterVolume *float64 `json:"master_volume"`
		*alias
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MasterVolume != nil {
		s.MasterVolume = *aux.MasterVolume
	} else {
		s.MasterVolume = DefaultMasterVolume
	}
	if s.Channels == nil {
		s.Channels = []ChannelConfiguration{}
	}
	if s.Songs == nil {
		s.Songs = []PerformanceSong{}
	}
	return nil
}

// NewSession returns an empty session with a fresh id
func NewSession(name string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		Name:         name,
		Channels:     []ChannelConfiguration{},
		MasterVolume: DefaultMasterVolume,
		Songs:        []PerformanceSong{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SongByID returns a pointer into the session's song list, or nil
func (s *Session) SongByID(id string) *PerformanceSong {
	for i := range s.Songs {
		if s.Songs[i].ID == id {
			return &s.Songs[i]
		}
	}
	return nil
}

// ChannelByID returns a pointer into the session's channel list, or nil
func (s *Session) ChannelByID(id string) *ChannelConfiguration {
	for i := range s.Channels {
		if s.Channels[i].ID == id {
			return &s.Channels[i]
		}
	}
	return nil
}

// ActiveSong returns the active song, or nil when none is set
func (s *Session) ActiveSong() *PerformanceSong {
	if s.ActiveSongID == "" {
		return nil
	}
	return s.SongByID(s.ActiveSongID)
}

// Clone returns a deep copy safe to hand outside the store
func (s *Session) Clone() *Session {
	out := *s
	out.Channels = make([]ChannelConfiguration, len(s.Channels))
	for i, c := range s.Channels {
		out.Channels[i] = cloneChannel(c)
	}
	out.Songs = make([]PerformanceSong, len(s.Songs))
	for i, song := range s.Songs {
		out.Songs[i] = cloneSong(song)
	}
	return &out
}

func cloneChannel(c ChannelConfiguration) ChannelConfiguration {
	if c.Instrument != nil {
		inst := *c.Instrument
		inst.State = append([]byte(nil), c.Instrument.State...)
		c.Instrument = &inst
	}
	effects := make([]PluginConfiguration, len(c.Effects))
	for i, e := range c.Effects {
		e.State = append([]byte(nil), e.State...)
		effects[i] = e
	}
	c.Effects = effects
	return c
}

func cloneSong(s PerformanceSong) PerformanceSong {
	s.ChannelStates = clonePresetStates(s.ChannelStates)
	sections := make([]SongSection, len(s.Sections))
	for i, sec := range s.Sections {
		sec.ChannelStates = clonePresetStates(sec.ChannelStates)
		sections[i] = sec
	}
	s.Sections = sections
	if s.Trigger != nil {
		t := *s.Trigger
		s.Trigger = &t
	}
	s.SelectionMessages = append([]ExternalMIDIMessage(nil), s.SelectionMessages...)
	return s
}

func clonePresetStates(states []ChannelPresetState) []ChannelPresetState {
	if states == nil {
		return nil
	}
	out := make([]ChannelPresetState, len(states))
	for i, st := range states {
		if st.Volume != nil {
			v := *st.Volume
			st.Volume = &v
		}
		if st.Pan != nil {
			p := *st.Pan
			st.Pan = &p
		}
		if st.Muted != nil {
			m := *st.Muted
			st.Muted = &m
		}
		st.EffectBypasses = append([]bool(nil), st.EffectBypasses...)
		out[i] = st
	}
	return out
}
