package mididev

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

// Manager handles MIDI port discovery, listening, and sending
type Manager struct {
	mu    sync.RWMutex
	stops []func()
	sends map[string]func(midi.Message) error
}

// NewManager creates a new MIDI manager
func NewManager() *Manager {
	return &Manager{sends: map[string]func(midi.Message) error{}}
}

// Close stops all listeners and shuts down the MIDI driver
func (m *Manager) Close() {
	m.mu.Lock()
	for _, stop := range m.stops {
		stop()
	}
	m.stops = nil
	m.mu.Unlock()
	midi.CloseDriver()
}

// ListInPorts returns the names of available MIDI input ports
func (m *Manager) ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// ListOutPorts returns the names of available MIDI output ports
func (m *Manager) ListOutPorts() []string {
	outs := midi.GetOutPorts()
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

func (m *Manager) findInPort(name string) drivers.In {
	for _, in := range midi.GetInPorts() {
		if in.String() == name {
			return in
		}
	}
	return nil
}

func (m *Manager) findOutPort(name string) drivers.Out {
	for _, out := range midi.GetOutPorts() {
		if out.String() == name {
			return out
		}
	}
	return nil
}

// Listen starts listening on the named input port, translating messages into
// Events tagged with the port name. The returned stop function is also
// invoked by Close.
func (m *Manager) Listen(portName string, callback func(Event)) (func(), error) {
	inPort := m.findInPort(portName)
	if inPort == nil {
		return nil, fmt.Errorf("input port not found: %s", portName)
	}

	stop, err := midi.ListenTo(inPort, func(msg midi.Message, timestampms int32) {
		var channel, key, velocity uint8

		switch {
		case msg.GetNoteOn(&channel, &key, &velocity):
			// Running-status note-on with velocity 0 is a note-off.
			typ := EventNoteOn
			if velocity == 0 {
				typ = EventNoteOff
			}
			callback(Event{Type: typ, Channel: channel, Note: key, Velocity: velocity, Source: portName})
		case msg.GetNoteOff(&channel, &key, &velocity):
			callback(Event{Type: EventNoteOff, Channel: channel, Note: key, Velocity: velocity, Source: portName})
		case msg.GetControlChange(&channel, &key, &velocity):
			callback(Event{Type: EventControlChange, Channel: channel, Note: key, Velocity: velocity, Source: portName})
		case msg.GetProgramChange(&channel, &key):
			callback(Event{Type: EventProgramChange, Channel: channel, Note: key, Source: portName})
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start listening: %w", err)
	}

	m.mu.Lock()
	m.stops = append(m.stops, stop)
	m.mu.Unlock()
	return stop, nil
}

// sender returns a cached send function for the named output port
func (m *Manager) sender(portName string) (func(midi.Message) error, error) {
	m.mu.RLock()
	send, ok := m.sends[portName]
	m.mu.RUnlock()
	if ok {
		return send, nil
	}

	outPort := m.findOutPort(portName)
	if outPort == nil {
		return nil, fmt.Errorf("output port not found: %s", portName)
	}
	send, err := midi.SendTo(outPort)
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}

	m.mu.Lock()
	m.sends[portName] = send
	m.mu.Unlock()
	return send, nil
}

// Send delivers an event to the named output port
func (m *Manager) Send(portName string, ev Event) error {
	send, err := m.sender(portName)
	if err != nil {
		return err
	}

	var msg midi.Message
	switch ev.Type {
	case EventNoteOn:
		msg = midi.NoteOn(ev.Channel, ev.Note, ev.Velocity)
	case EventNoteOff:
		msg = midi.NoteOff(ev.Channel, ev.Note)
	case EventControlChange:
		msg = midi.ControlChange(ev.Channel, ev.Note, ev.Velocity)
	case EventProgramChange:
		msg = midi.ProgramChange(ev.Channel, ev.Note)
	default:
		return fmt.Errorf("unknown event type: %s", ev.Type)
	}
	return send(msg)
}
