package mididev

// EventType classifies the discrete MIDI events the engine routes
type EventType string

const (
	EventNoteOn        EventType = "note_on"
	EventNoteOff       EventType = "note_off"
	EventControlChange EventType = "control_change"
	EventProgramChange EventType = "program_change"
)

// Event is one discrete MIDI event tagged with the port it arrived on.
// Note doubles as the controller number for control changes and the program
// number for program changes; Velocity doubles as the controller value.
type Event struct {
	Type     EventType
	Channel  uint8 // 0-15
	Note     uint8 // 0-127
	Velocity uint8 // 0-127
	Source   string
}

// IsNote reports whether the event is a note on or off
func (e Event) IsNote() bool {
	return e.Type == EventNoteOn || e.Type == EventNoteOff
}
