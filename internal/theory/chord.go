package theory

import (
	"sort"
	"strings"
)

// ChordQuality is the triad flavor assigned to a scale degree
type ChordQuality string

const (
	QualityMajor      ChordQuality = "major"
	QualityMinor      ChordQuality = "minor"
	QualityDiminished ChordQuality = "diminished"
)

// triadIntervals returns the semitone stack for a quality
func (q ChordQuality) triadIntervals() [3]int {
	switch q {
	case QualityMinor:
		return [3]int{0, 3, 7}
	case QualityDiminished:
		return [3]int{0, 3, 6}
	default:
		return [3]int{0, 4, 7}
	}
}

// noteNames uses sharp spellings; good enough for display and stable for tests
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var romanNumerals = [7]string{"I", "II", "III", "IV", "V", "VI", "VII"}

// NoteName returns the sharp-spelled name of a pitch class
func NoteName(pitchClass int) string {
	return noteNames[((pitchClass%12)+12)%12]
}

// DegreeQuality returns the triad quality for a degree of a diatonic scale
func DegreeQuality(degree int, scale ScaleType) (ChordQuality, bool) {
	qualities, ok := scaleQualities[scale]
	if !ok || degree < 1 || degree > len(qualities) {
		return "", false
	}
	return qualities[degree-1], true
}

// Triad builds the three notes of a diatonic triad. The chord root is the
// scale degree's pitch class placed in the given octave; quality intervals
// are stacked on top. Notes that land outside 0-127 are dropped, never
// clamped, so chords at range extremes may have fewer than three notes.
// Returns nil for non-diatonic scales or degrees outside 1-7.
func Triad(degree, root int, scale ScaleType, octave int) []int {
	quality, ok := DegreeQuality(degree, scale)
	if !ok {
		return nil
	}
	chordRoot := (root + scale.Intervals()[degree-1]) % 12
	base := octave*12 + chordRoot
	notes := make([]int, 0, 3)
	for _, iv := range quality.triadIntervals() {
		n := base + iv
		if n >= 0 && n <= 127 {
			notes = append(notes, n)
		}
	}
	return notes
}

// TriadWithInversion builds a triad and moves its bottom `inversion` notes
// up an octave, skipping any move that would leave MIDI range, then returns
// the notes sorted ascending. inversion 0 is the root position.
func TriadWithInversion(degree, root int, scale ScaleType, octave, inversion int) []int {
	notes := Triad(degree, root, scale, octave)
	if len(notes) == 0 {
		return notes
	}
	if inversion < 0 {
		inversion = 0
	}
	if inversion > 2 {
		inversion = 2
	}
	for i := 0; i < inversion && i < len(notes); i++ {
		if notes[i]+12 <= 127 {
			notes[i] += 12
		}
	}
	sort.Ints(notes)
	return notes
}

// ChordName formats a degree's chord as a note name plus quality suffix,
// e.g. "C", "Dm", "B°" in C major.
func ChordName(degree, root int, scale ScaleType) string {
	quality, ok := DegreeQuality(degree, scale)
	if !ok {
		return ""
	}
	chordRoot := (root + scale.Intervals()[degree-1]) % 12
	name := noteNames[chordRoot]
	switch quality {
	case QualityMinor:
		name += "m"
	case QualityDiminished:
		name += "°"
	}
	return name
}

// RomanNumeral formats a degree as performance-chart notation: uppercase for
// major, lowercase for minor, lowercase with a ° marker for diminished.
func RomanNumeral(degree int, scale ScaleType) string {
	quality, ok := DegreeQuality(degree, scale)
	if !ok {
		return ""
	}
	numeral := romanNumerals[degree-1]
	switch quality {
	case QualityMinor:
		return strings.ToLower(numeral)
	case QualityDiminished:
		return strings.ToLower(numeral) + "°"
	}
	return numeral
}
