package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stagelinkmusic/stagelink/internal/session"
)

func newStoreWithSongs(t *testing.T, names ...string) *session.Store {
	t.Helper()
	store := session.NewStore(session.NewMemKV())
	for _, name := range names {
		store.AddSong(session.NewPerformanceSong(name))
	}
	return store
}

func TestDeleteActiveSongReassignsToFirst(t *testing.T) {
	store := newStoreWithSongs(t, "one", "two", "three")
	defer store.Close()

	songs := store.Session().Songs
	store.SetActiveSong(songs[1].ID)
	store.DeleteSong(songs[1].ID)

	sess := store.Session()
	assert.Len(t, sess.Songs, 2)
	assert.Equal(t, sess.Songs[0].ID, sess.ActiveSongID)
}

func TestDeleteLastSongClearsActive(t *testing.T) {
	store := newStoreWithSongs(t, "only")
	defer store.Close()

	id := store.Session().Songs[0].ID
	store.SetActiveSong(id)
	store.DeleteSong(id)

	sess := store.Session()
	assert.Empty(t, sess.Songs)
	assert.Empty(t, sess.ActiveSongID)
}

func TestDeleteInactiveSongKeepsActive(t *testing.T) {
	store := newStoreWithSongs(t, "one", "two")
	defer store.Close()

	songs := store.Session().Songs
	store.SetActiveSong(songs[0].ID)
	store.DeleteSong(songs[1].ID)

	assert.Equal(t, songs[0].ID, store.Session().ActiveSongID)
}

func TestMoveSongRenumbersEveryOrder(t *testing.T) {
	store := newStoreWithSongs(t, "a", "b", "c", "d")
	defer store.Close()

	store.MoveSong(3, 0)

	sess := store.Session()
	assert.Equal(t, "d", sess.Songs[0].Name)
	assert.Equal(t, "a", sess.Songs[1].Name)
	for i, song := range sess.Songs {
		assert.Equal(t, i, song.Order, "song %q", song.Name)
	}
}

func TestMoveSongOutOfRangeIsNoop(t *testing.T) {
	store := newStoreWithSongs(t, "a", "b")
	defer store.Close()

	before := store.Session()
	store.MoveSong(0, 5)
	store.MoveSong(-1, 1)
	after := store.Session()
	assert.Equal(t, before.Songs, after.Songs)
}

func TestOrderStaysDenseAfterAddAndDelete(t *testing.T) {
	store := newStoreWithSongs(t, "a", "b", "c")
	defer store.Close()

	store.DeleteSong(store.Session().Songs[0].ID)
	store.AddSong(session.NewPerformanceSong("d"))

	for i, song := range store.Session().Songs {
		assert.Equal(t, i, song.Order)
	}
}

func TestSetActiveSongIgnoresUnknownID(t *testing.T) {
	store := newStoreWithSongs(t, "a")
	defer store.Close()

	store.SetActiveSong("no-such-song")
	assert.Empty(t, store.Session().ActiveSongID)
}

func TestUpdateChannelReplacesByID(t *testing.T) {
	store := session.NewStore(session.NewMemKV())
	defer store.Close()

	ch := session.NewChannelConfiguration("keys")
	store.AddChannel(ch)

	ch.Name = "lead keys"
	ch.Volume = 0.5
	store.UpdateChannel(ch)

	got := store.Session().ChannelByID(ch.ID)
	assert.NotNil(t, got)
	assert.Equal(t, "lead keys", got.Name)
	assert.Equal(t, 0.5, got.Volume)
}

func TestChannelEffectsTruncatedToSlotLimit(t *testing.T) {
	store := session.NewStore(session.NewMemKV())
	defer store.Close()

	ch := session.NewChannelConfiguration("keys")
	for i := 0; i < session.MaxEffectSlots+2; i++ {
		ch.Effects = append(ch.Effects, session.PluginConfiguration{Name: "fx"})
	}
	store.AddChannel(ch)

	got := store.Session().ChannelByID(ch.ID)
	assert.Len(t, got.Effects, session.MaxEffectSlots)

	got.Effects = append(got.Effects, session.PluginConfiguration{Name: "extra"})
	store.UpdateChannel(*got)
	assert.Len(t, store.Session().ChannelByID(ch.ID).Effects, session.MaxEffectSlots)
}

func TestSaveAsCreatesNewIdentity(t *testing.T) {
	store := newStoreWithSongs(t, "a")
	defer store.Close()

	before := store.Session()
	fork := store.SaveAs("copy")

	assert.NotEqual(t, before.ID, fork.ID)
	assert.Equal(t, "copy", fork.Name)
	assert.Len(t, fork.Songs, 1)
	assert.Equal(t, fork.ID, store.Session().ID)
}

func TestSetMasterVolumeClamps(t *testing.T) {
	store := session.NewStore(session.NewMemKV())
	defer store.Close()

	store.SetMasterVolume(1.5)
	assert.Equal(t, 1.0, store.Session().MasterVolume)
	store.SetMasterVolume(-0.2)
	assert.Equal(t, 0.0, store.Session().MasterVolume)
}

func TestOnChangeHookFiresOnMutation(t *testing.T) {
	store := session.NewStore(session.NewMemKV())
	defer store.Close()

	fired := 0
	store.SetOnChange(func() { fired++ })
	store.AddSong(session.NewPerformanceSong("a"))
	store.SetMasterVolume(0.4)
	assert.Equal(t, 2, fired)
}

func TestCorruptStoredSessionFallsBackToDefault(t *testing.T) {
	kv := session.NewMemKV()
	assert.NoError(t, kv.Set(session.KeySession, []byte("{not json")))

	store := session.NewStore(kv)
	sess := store.Session()
	assert.NotEmpty(t, sess.ID)
	assert.Empty(t, sess.Songs)
	store.Close()

	// The fallback itself was persisted, so a reload sees the same session.
	store2 := session.NewStore(kv)
	defer store2.Close()
	assert.Equal(t, sess.ID, store2.Session().ID)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	kv := session.NewMemKV()
	store := session.NewStore(kv)
	song := session.NewPerformanceSong("intro")
	song.RootNote = 7
	store.AddSong(song)
	store.SetActiveSong(song.ID)
	store.Close()

	store2 := session.NewStore(kv)
	defer store2.Close()
	sess := store2.Session()
	assert.Len(t, sess.Songs, 1)
	assert.Equal(t, song.ID, sess.ActiveSongID)
	assert.Equal(t, 7, sess.Songs[0].RootNote)
}
