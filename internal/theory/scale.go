package theory

// ScaleType identifies a scale by name
type ScaleType string

const (
	ScaleMajor           ScaleType = "major"
	ScaleMinor           ScaleType = "minor"
	ScaleHarmonicMinor   ScaleType = "harmonic_minor"
	ScaleMelodicMinor    ScaleType = "melodic_minor"
	ScaleDorian          ScaleType = "dorian"
	ScalePhrygian        ScaleType = "phrygian"
	ScaleLydian          ScaleType = "lydian"
	ScaleMixolydian      ScaleType = "mixolydian"
	ScaleLocrian         ScaleType = "locrian"
	ScalePentatonicMajor ScaleType = "pentatonic_major"
	ScalePentatonicMinor ScaleType = "pentatonic_minor"
	ScaleBlues           ScaleType = "blues"
	ScaleChromatic       ScaleType = "chromatic"
)

// FilterMode selects what happens to out-of-scale notes
type FilterMode string

const (
	FilterBlock FilterMode = "block" // drop out-of-scale notes
	FilterSnap  FilterMode = "snap"  // move them to the nearest in-scale note
)

// scaleIntervals maps each scale to its semitone offsets from the root.
// Diatonic scales have exactly 7 entries; degree 1 is always offset 0.
var scaleIntervals = map[ScaleType][]int{
	ScaleMajor:           {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:           {0, 2, 3, 5, 7, 8, 10},
	ScaleHarmonicMinor:   {0, 2, 3, 5, 7, 8, 11},
	ScaleMelodicMinor:    {0, 2, 3, 5, 7, 9, 11},
	ScaleDorian:          {0, 2, 3, 5, 7, 9, 10},
	ScalePhrygian:        {0, 1, 3, 5, 7, 8, 10},
	ScaleLydian:          {0, 2, 4, 6, 7, 9, 11},
	ScaleMixolydian:      {0, 2, 4, 5, 7, 9, 10},
	ScaleLocrian:         {0, 1, 3, 5, 6, 8, 10},
	ScalePentatonicMajor: {0, 2, 4, 7, 9},
	ScalePentatonicMinor: {0, 3, 5, 7, 10},
	ScaleBlues:           {0, 3, 5, 6, 7, 10},
	ScaleChromatic:       {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// scaleQualities maps each 7-degree scale to its per-degree triad quality.
// Augmented triads (harmonic/melodic minor III) are folded into major since
// the chord generator only builds major/minor/diminished shapes.
var scaleQualities = map[ScaleType][]ChordQuality{
	ScaleMajor:         {QualityMajor, QualityMinor, QualityMinor, QualityMajor, QualityMajor, QualityMinor, QualityDiminished},
	ScaleMinor:         {QualityMinor, QualityDiminished, QualityMajor, QualityMinor, QualityMinor, QualityMajor, QualityMajor},
	ScaleHarmonicMinor: {QualityMinor, QualityDiminished, QualityMajor, QualityMinor, QualityMajor, QualityMajor, QualityDiminished},
	ScaleMelodicMinor:  {QualityMinor, QualityMinor, QualityMajor, QualityMajor, QualityMajor, QualityDiminished, QualityDiminished},
	ScaleDorian:        {QualityMinor, QualityMinor, QualityMajor, QualityMajor, QualityMinor, QualityDiminished, QualityMajor},
	ScalePhrygian:      {QualityMinor, QualityMajor, QualityMajor, QualityMinor, QualityDiminished, QualityMajor, QualityMinor},
	ScaleLydian:        {QualityMajor, QualityMajor, QualityMinor, QualityDiminished, QualityMajor, QualityMinor, QualityMinor},
	ScaleMixolydian:    {QualityMajor, QualityMinor, QualityDiminished, QualityMajor, QualityMinor, QualityMinor, QualityMajor},
	ScaleLocrian:       {QualityDiminished, QualityMajor, QualityMinor, QualityMinor, QualityMajor, QualityMajor, QualityMinor},
}

// snapPrefersUp resolves equidistant snap ties by the out-of-scale note's
// pitch class, following notation convention: flat-named pitch classes
// (Eb, Bb) resolve up to their natural, sharp-named ones (C#, F#, G#) down.
// Pitch classes not listed resolve down.
var snapPrefersUp = map[int]bool{
	1:  false, // C# -> C
	3:  true,  // Eb -> E
	6:  false, // F# -> F
	8:  false, // G# -> G
	10: true,  // Bb -> B
}

// Intervals returns the scale's semitone offsets from the root
func (s ScaleType) Intervals() []int {
	if iv, ok := scaleIntervals[s]; ok {
		return iv
	}
	return scaleIntervals[ScaleMajor]
}

// IsDiatonic reports whether the scale has exactly seven degrees
func (s ScaleType) IsDiatonic() bool {
	return len(s.Intervals()) == 7
}

// AllScales lists every scale type, diatonic scales first
var AllScales = []ScaleType{
	ScaleMajor, ScaleMinor, ScaleHarmonicMinor, ScaleMelodicMinor,
	ScaleDorian, ScalePhrygian, ScaleLydian, ScaleMixolydian, ScaleLocrian,
	ScalePentatonicMajor, ScalePentatonicMinor, ScaleBlues, ScaleChromatic,
}

// IsInScale reports whether a MIDI note belongs to the scale rooted at root.
// root is a pitch class 0-11, note is 0-127.
func IsInScale(note, root int, scale ScaleType) bool {
	pc := ((note-root)%12 + 12) % 12
	for _, iv := range scale.Intervals() {
		if iv == pc {
			return true
		}
	}
	return false
}

// ScaleNotes returns every MIDI note 0-127 in the scale, ascending
func ScaleNotes(root int, scale ScaleType) []int {
	notes := make([]int, 0, 128)
	for n := 0; n <= 127; n++ {
		if IsInScale(n, root, scale) {
			notes = append(notes, n)
		}
	}
	return notes
}

// SnapToScale quantizes a note to the nearest in-scale note. In-scale input
// is returned unchanged. Equidistant candidates are resolved by the
// snapPrefersUp table; if only one direction yields an in-scale note within
// MIDI range, that note wins regardless of preference.
func SnapToScale(note, root int, scale ScaleType) int {
	if IsInScale(note, root, scale) {
		return note
	}
	for dist := 1; dist <= 127; dist++ {
		up, down := note+dist, note-dist
		upOK := up <= 127 && IsInScale(up, root, scale)
		downOK := down >= 0 && IsInScale(down, root, scale)
		switch {
		case upOK && downOK:
			pc := ((note % 12) + 12) % 12
			if snapPrefersUp[pc] {
				return up
			}
			return down
		case upOK:
			return up
		case downOK:
			return down
		}
	}
	return note
}

// ScaleDegree returns the 1-based degree of a note within a diatonic scale,
// or false for non-diatonic scales and out-of-scale notes.
func ScaleDegree(note, root int, scale ScaleType) (int, bool) {
	if !scale.IsDiatonic() {
		return 0, false
	}
	pc := ((note-root)%12 + 12) % 12
	for i, iv := range scale.Intervals() {
		if iv == pc {
			return i + 1, true
		}
	}
	return 0, false
}

// NoteForDegree returns the MIDI note for a scale degree in a given octave.
// The degree is clamped to the scale's degree count and the result to 0-127.
func NoteForDegree(degree, root int, scale ScaleType, octave int) int {
	intervals := scale.Intervals()
	if degree < 1 {
		degree = 1
	}
	if degree > len(intervals) {
		degree = len(intervals)
	}
	pc := (root + intervals[degree-1]) % 12
	return clampNote(octave*12 + pc)
}

// FilterNote applies a filter mode to a note. Block mode returns ok=false
// for out-of-scale notes; snap mode always returns a note.
func FilterNote(note, root int, scale ScaleType, mode FilterMode) (int, bool) {
	switch mode {
	case FilterBlock:
		if IsInScale(note, root, scale) {
			return note, true
		}
		return 0, false
	case FilterSnap:
		return SnapToScale(note, root, scale), true
	}
	return note, true
}

func clampNote(n int) int {
	if n < 0 {
		return 0
	}
	if n > 127 {
		return 127
	}
	return n
}
