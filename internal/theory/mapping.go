package theory

// ChordMapping routes pad buttons to scale degrees. PadChannel is the MIDI
// channel (1-16) the chord pad transmits on; ButtonMap maps an incoming note
// number to a scale degree 1-7. Degrees outside 1-7 are never stored: an
// unmapped button simply has no entry.
type ChordMapping struct {
	PadChannel int         `json:"pad_channel"`
	ButtonMap  map[int]int `json:"button_map"`
	BaseOctave int         `json:"base_octave"`
}

// NewChordMapping returns a mapping with sensible pad defaults
func NewChordMapping() ChordMapping {
	return ChordMapping{
		PadChannel: 16,
		ButtonMap:  map[int]int{},
		BaseOctave: 4,
	}
}

// SetButton assigns a scale degree to a pad note. A degree outside 1-7
// removes the assignment instead of storing an invalid value.
func (m *ChordMapping) SetButton(note, degree int) {
	if m.ButtonMap == nil {
		m.ButtonMap = map[int]int{}
	}
	if degree < 1 || degree > 7 {
		delete(m.ButtonMap, note)
		return
	}
	m.ButtonMap[note] = degree
}

// Degree looks up the scale degree assigned to a pad note
func (m *ChordMapping) Degree(note int) (int, bool) {
	d, ok := m.ButtonMap[note]
	return d, ok
}

// ProcessChordTrigger converts a pad note into a triad using the mapping's
// base octave. An unmapped note fires no chord; passing the original note
// through in that case is the caller's call, not this function's.
func ProcessChordTrigger(note int, mapping ChordMapping, root int, scale ScaleType) ([]int, bool) {
	degree, ok := mapping.Degree(note)
	if !ok {
		return nil, false
	}
	chord := Triad(degree, root, scale, mapping.BaseOctave)
	if len(chord) == 0 {
		return nil, false
	}
	return chord, true
}
