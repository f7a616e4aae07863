package theory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagelinkmusic/stagelink/internal/theory"
)

var diatonicScales = []theory.ScaleType{
	theory.ScaleMajor, theory.ScaleMinor, theory.ScaleHarmonicMinor,
	theory.ScaleMelodicMinor, theory.ScaleDorian, theory.ScalePhrygian,
	theory.ScaleLydian, theory.ScaleMixolydian, theory.ScaleLocrian,
}

func TestSnapAlwaysLandsInScale(t *testing.T) {
	for _, scale := range theory.AllScales {
		for root := 0; root < 12; root++ {
			for note := 0; note <= 127; note++ {
				snapped := theory.SnapToScale(note, root, scale)
				assert.True(t, theory.IsInScale(snapped, root, scale),
					"scale=%s root=%d note=%d snapped=%d", scale, root, note, snapped)
			}
		}
	}
}

func TestSnapIsIdentityForInScaleNotes(t *testing.T) {
	for _, scale := range diatonicScales {
		for root := 0; root < 12; root++ {
			for _, note := range theory.ScaleNotes(root, scale) {
				assert.Equal(t, note, theory.SnapToScale(note, root, scale))
			}
		}
	}
}

func TestSnapTieBreakEnharmonicPreference(t *testing.T) {
	// In C major both neighbors of every black key are in scale, so every
	// snap is a tie and the preference table decides alone.
	cases := []struct {
		note, want int
	}{
		{61, 60}, // C#4 -> C4
		{63, 64}, // Eb4 -> E4
		{66, 65}, // F#4 -> F4
		{68, 67}, // G#4 -> G4
		{70, 71}, // Bb4 -> B4
	}
	for _, c := range cases {
		assert.Equal(t, c.want, theory.SnapToScale(c.note, 0, theory.ScaleMajor),
			"note=%d", c.note)
	}
}

func TestSnapAtRangeBoundaryTakesOnlyCandidate(t *testing.T) {
	// Rooted at C#, note 0 (C) sits a major seventh above the root, which C#
	// major contains, so it needs no snap at all.
	assert.Equal(t, 0, theory.SnapToScale(0, 1, theory.ScaleMajor))

	// C# pentatonic major has no major seventh: note 0 is out of scale with
	// no room below, so the snap must go up to C# regardless of C's
	// prefer-down entry.
	assert.Equal(t, 1, theory.SnapToScale(0, 1, theory.ScalePentatonicMajor))
}

func TestIsInScale(t *testing.T) {
	assert.True(t, theory.IsInScale(60, 0, theory.ScaleMajor))  // C in C major
	assert.False(t, theory.IsInScale(61, 0, theory.ScaleMajor)) // C# not
	assert.True(t, theory.IsInScale(61, 1, theory.ScaleMajor))  // C# in C# major
	// Every note is in the chromatic scale.
	for n := 0; n <= 127; n++ {
		assert.True(t, theory.IsInScale(n, 5, theory.ScaleChromatic))
	}
}

func TestScaleDegree(t *testing.T) {
	// C major degrees at octave 5.
	wantNotes := []int{60, 62, 64, 65, 67, 69, 71}
	for i, note := range wantNotes {
		degree, ok := theory.ScaleDegree(note, 0, theory.ScaleMajor)
		assert.True(t, ok)
		assert.Equal(t, i+1, degree)
	}
	_, ok := theory.ScaleDegree(61, 0, theory.ScaleMajor)
	assert.False(t, ok, "out-of-scale note has no degree")
	_, ok = theory.ScaleDegree(60, 0, theory.ScaleBlues)
	assert.False(t, ok, "non-diatonic scales have no degrees")
}

func TestNoteForDegree(t *testing.T) {
	assert.Equal(t, 67, theory.NoteForDegree(5, 0, theory.ScaleMajor, 5)) // G5
	assert.Equal(t, 62, theory.NoteForDegree(1, 2, theory.ScaleMinor, 5)) // D5
	// Clamped to MIDI range at the top.
	assert.LessOrEqual(t, theory.NoteForDegree(7, 11, theory.ScaleMajor, 10), 127)
}

func TestFilterNote(t *testing.T) {
	note, ok := theory.FilterNote(60, 0, theory.ScaleMajor, theory.FilterBlock)
	assert.True(t, ok)
	assert.Equal(t, 60, note)

	_, ok = theory.FilterNote(61, 0, theory.ScaleMajor, theory.FilterBlock)
	assert.False(t, ok, "block mode drops out-of-scale notes")

	note, ok = theory.FilterNote(61, 0, theory.ScaleMajor, theory.FilterSnap)
	assert.True(t, ok)
	assert.Equal(t, 60, note)
}

func TestScaleNotesSortedAndComplete(t *testing.T) {
	notes := theory.ScaleNotes(0, theory.ScaleMajor)
	assert.Equal(t, 75, len(notes)) // 7 of every 12 semitones across 0-127
	for i := 1; i < len(notes); i++ {
		assert.Greater(t, notes[i], notes[i-1])
	}
}
