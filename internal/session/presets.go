package session

import (
	"github.com/stagelinkmusic/stagelink/internal/theory"
)

// PresetSummary is one entry of the flattened preset list the remote sees.
// Order is the 0-based global index across every song's sections in
// song-then-section order.
type PresetSummary struct {
	Order    int               `json:"order"`
	Name     string            `json:"name"`
	SongID   string            `json:"song_id"`
	RootNote int               `json:"root_note"`
	Scale    theory.ScaleType  `json:"scale"`
	Mode     theory.FilterMode `json:"filter_mode"`
	BPM      int               `json:"bpm,omitempty"`
}

// sectionCount is how many flattened entries a song contributes: one per
// section, or a single implicit entry for a song without sections.
func sectionCount(song *PerformanceSong) int {
	if len(song.Sections) == 0 {
		return 1
	}
	return len(song.Sections)
}

// FlattenPresets projects the two-level song→section hierarchy into one
// globally ordered list.
func FlattenPresets(sess *Session) []PresetSummary {
	out := make([]PresetSummary, 0, len(sess.Songs))
	index := 0
	for i := range sess.Songs {
		song := &sess.Songs[i]
		if len(song.Sections) == 0 {
			out = append(out, summarize(song, song.Name, index))
			index++
			continue
		}
		for _, sec := range song.Sections {
			out = append(out, summarize(song, song.Name+" / "+sec.Name, index))
			index++
		}
	}
	return out
}

func summarize(song *PerformanceSong, name string, index int) PresetSummary {
	return PresetSummary{
		Order:    index,
		Name:     name,
		SongID:   song.ID,
		RootNote: song.RootNote,
		Scale:    song.Scale,
		Mode:     song.FilterMode,
		BPM:      song.BPM,
	}
}

// ResolvePresetIndex maps a global flattened index back to a (song, section)
// pair by re-walking the current song list. Sessions change between calls,
// so the walk is redone every time and never cached. sectionIndex is -1 for
// a song without sections.
func ResolvePresetIndex(sess *Session, index int) (songIndex, sectionIndex int, ok bool) {
	if index < 0 {
		return 0, 0, false
	}
	offset := 0
	for i := range sess.Songs {
		n := sectionCount(&sess.Songs[i])
		if index < offset+n {
			if len(sess.Songs[i].Sections) == 0 {
				return i, -1, true
			}
			return i, index - offset, true
		}
		offset += n
	}
	return 0, 0, false
}

// ActivePresetIndex returns the flattened index of the session's active
// song (its first section when it has sections), or false when no song is
// active.
func ActivePresetIndex(sess *Session) (int, bool) {
	if sess.ActiveSongID == "" {
		return 0, false
	}
	offset := 0
	for i := range sess.Songs {
		if sess.Songs[i].ID == sess.ActiveSongID {
			return offset, true
		}
		offset += sectionCount(&sess.Songs[i])
	}
	return 0, false
}
