package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagelinkmusic/stagelink/internal/session"
)

// threeSongSession has sections [2, 3, 1]: six flattened entries total.
func threeSongSession() *session.Session {
	sess := session.NewSession("set")
	counts := []int{2, 3, 1}
	names := []string{"first", "second", "third"}
	for i, n := range counts {
		song := session.NewPerformanceSong(names[i])
		for j := 0; j < n; j++ {
			song.Sections = append(song.Sections, session.NewSongSection("part"))
		}
		song.Order = i
		sess.Songs = append(sess.Songs, song)
	}
	return sess
}

func TestFlattenPresetsGlobalOrder(t *testing.T) {
	sess := threeSongSession()
	presets := session.FlattenPresets(sess)
	assert.Len(t, presets, 6)
	for i, p := range presets {
		assert.Equal(t, i, p.Order)
	}
	assert.Equal(t, sess.Songs[0].ID, presets[0].SongID)
	assert.Equal(t, sess.Songs[0].ID, presets[1].SongID)
	assert.Equal(t, sess.Songs[1].ID, presets[2].SongID)
	assert.Equal(t, sess.Songs[2].ID, presets[5].SongID)
}

func TestResolvePresetIndexWalksSections(t *testing.T) {
	sess := threeSongSession()

	cases := []struct {
		index, song, section int
	}{
		{0, 0, 0},
		{1, 0, 1},
		{2, 1, 0},
		{4, 1, 2}, // last section of the middle song
		{5, 2, 0},
	}
	for _, c := range cases {
		songIdx, secIdx, ok := session.ResolvePresetIndex(sess, c.index)
		assert.True(t, ok, "index %d", c.index)
		assert.Equal(t, c.song, songIdx, "index %d", c.index)
		assert.Equal(t, c.section, secIdx, "index %d", c.index)
	}

	_, _, ok := session.ResolvePresetIndex(sess, 6)
	assert.False(t, ok)
	_, _, ok = session.ResolvePresetIndex(sess, -1)
	assert.False(t, ok)
}

func TestSectionlessSongIsOneEntry(t *testing.T) {
	sess := session.NewSession("set")
	song := session.NewPerformanceSong("solo")
	sess.Songs = append(sess.Songs, song)

	presets := session.FlattenPresets(sess)
	assert.Len(t, presets, 1)
	assert.Equal(t, "solo", presets[0].Name)

	songIdx, secIdx, ok := session.ResolvePresetIndex(sess, 0)
	assert.True(t, ok)
	assert.Equal(t, 0, songIdx)
	assert.Equal(t, -1, secIdx, "no section to pick")
}

func TestActivePresetIndex(t *testing.T) {
	sess := threeSongSession()
	_, ok := session.ActivePresetIndex(sess)
	assert.False(t, ok)

	sess.ActiveSongID = sess.Songs[1].ID
	idx, ok := session.ActivePresetIndex(sess)
	assert.True(t, ok)
	assert.Equal(t, 2, idx, "middle song starts after the first song's two sections")
}
