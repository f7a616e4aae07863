package session

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stagelinkmusic/stagelink/internal/theory"
)

// Store keys inside the KV collaborator
const (
	KeySession      = "session"
	KeyChordMapping = "chord_mapping"
)

// Store is the persistence and mutation façade over the session model. All
// mutations go through its methods so every change hits disk and fires the
// change hook; nothing outside the store mutates the session directly.
//
// Disk writes are fire-and-forget: mutations marshal under the lock (cheap)
// and queue the bytes for a single writer goroutine, so callers on UI or
// MIDI paths never wait on I/O and writes still land in mutation order.
type Store struct {
	mu      sync.Mutex
	kv      KV
	session *Session
	mapping theory.ChordMapping

	onChange func()

	saves chan saveReq
	done  chan struct{}
	wg    sync.WaitGroup
}

type saveReq struct {
	key  string
	data []byte
}

// NewStore loads the session and chord mapping from the KV store, falling
// back to freshly constructed defaults when data is missing or fails to
// decode. The fallback is persisted immediately so subsequent loads agree.
func NewStore(kv KV) *Store {
	s := &Store{
		kv:    kv,
		saves: make(chan saveReq, 64),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()

	s.session = s.loadSession()
	s.mapping = s.loadMapping()
	return s
}

func (s *Store) loadSession() *Session {
	data, ok, err := s.kv.Get(KeySession)
	if err == nil && ok {
		var sess Session
		if err := json.Unmarshal(data, &sess); err == nil && sess.ID != "" {
			return &sess
		}
		log.Printf("session: stored session unreadable, starting fresh")
	}
	sess := NewSession("New Session")
	s.enqueueSave(KeySession, sess)
	return sess
}

func (s *Store) loadMapping() theory.ChordMapping {
	data, ok, err := s.kv.Get(KeyChordMapping)
	if err == nil && ok {
		var m theory.ChordMapping
		if err := json.Unmarshal(data, &m); err == nil && m.ButtonMap != nil {
			return m
		}
		log.Printf("session: stored chord mapping unreadable, starting fresh")
	}
	m := theory.NewChordMapping()
	s.enqueueSave(KeyChordMapping, m)
	return m
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case req := <-s.saves:
			if err := s.kv.Set(req.key, req.data); err != nil {
				log.Printf("session: persist %s: %v", req.key, err)
			}
		case <-s.done:
			// Drain anything still queued before stopping.
			for {
				select {
				case req := <-s.saves:
					if err := s.kv.Set(req.key, req.data); err != nil {
						log.Printf("session: persist %s: %v", req.key, err)
					}
				default:
					return
				}
			}
		}
	}
}

// Close flushes pending writes and stops the writer goroutine
func (s *Store) Close() {
	close(s.done)
	s.wg.Wait()
}

// SetOnChange registers the hook fired after every mutation. The host wires
// its network broadcast here; the store itself never talks to the network.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) enqueueSave(key string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("session: marshal %s: %v", key, err)
		return
	}
	select {
	case s.saves <- saveReq{key: key, data: data}:
	default:
		log.Printf("session: save queue full, dropping %s write", key)
	}
}

// mutate runs fn under the lock, stamps, persists, and fires the hook
func (s *Store) mutate(fn func(*Session)) {
	s.mu.Lock()
	fn(s.session)
	s.session.UpdatedAt = time.Now()
	s.enqueueSave(KeySession, s.session)
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Session returns a deep copy of the current session
func (s *Store) Session() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// ChordMapping returns the current chord pad mapping
func (s *Store) ChordMapping() theory.ChordMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.mapping
	m.ButtonMap = make(map[int]int, len(s.mapping.ButtonMap))
	for k, v := range s.mapping.ButtonMap {
		m.ButtonMap[k] = v
	}
	return m
}

// SetChordMapping replaces the chord pad mapping and persists it
func (s *Store) SetChordMapping(m theory.ChordMapping) {
	s.mu.Lock()
	s.mapping = m
	s.enqueueSave(KeyChordMapping, s.mapping)
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// SetActiveSong activates a song by id; unknown ids are ignored
func (s *Store) SetActiveSong(id string) {
	s.mutate(func(sess *Session) {
		if sess.SongByID(id) != nil {
			sess.ActiveSongID = id
		}
	})
}

// AddSong appends a song to the setlist and renumbers
func (s *Store) AddSong(song PerformanceSong) {
	s.mutate(func(sess *Session) {
		song.Order = len(sess.Songs)
		sess.Songs = append(sess.Songs, song)
		renumber(sess.Songs)
	})
}

// UpdateSong replaces a song by id
func (s *Store) UpdateSong(song PerformanceSong) {
	s.mutate(func(sess *Session) {
		for i := range sess.Songs {
			if sess.Songs[i].ID == song.ID {
				song.Order = i
				sess.Songs[i] = song
				return
			}
		}
	})
}

// DeleteSong removes a song by id. Deleting the active song reassigns the
// active id to the first remaining song, or clears it when none remain.
func (s *Store) DeleteSong(id string) {
	s.mutate(func(sess *Session) {
		for i := range sess.Songs {
			if sess.Songs[i].ID == id {
				sess.Songs = append(sess.Songs[:i], sess.Songs[i+1:]...)
				break
			}
		}
		renumber(sess.Songs)
		if sess.ActiveSongID == id {
			if len(sess.Songs) > 0 {
				sess.ActiveSongID = sess.Songs[0].ID
			} else {
				sess.ActiveSongID = ""
			}
		}
	})
}

// MoveSong moves a song between setlist positions and renumbers every song
// so Order stays dense and equal to list position.
func (s *Store) MoveSong(from, to int) {
	s.mutate(func(sess *Session) {
		if from < 0 || from >= len(sess.Songs) || to < 0 || to >= len(sess.Songs) || from == to {
			return
		}
		song := sess.Songs[from]
		sess.Songs = append(sess.Songs[:from], sess.Songs[from+1:]...)
		sess.Songs = append(sess.Songs[:to], append([]PerformanceSong{song}, sess.Songs[to:]...)...)
		renumber(sess.Songs)
	})
}

// renumber keeps every song's Order equal to its index. Run after every
// structural setlist change.
func renumber(songs []PerformanceSong) {
	for i := range songs {
		songs[i].Order = i
	}
}

// AddChannel appends a channel configuration
func (s *Store) AddChannel(cfg ChannelConfiguration) {
	capEffects(&cfg)
	s.mutate(func(sess *Session) {
		sess.Channels = append(sess.Channels, cfg)
	})
}

// UpdateChannel replaces a channel configuration by id
func (s *Store) UpdateChannel(cfg ChannelConfiguration) {
	capEffects(&cfg)
	s.mutate(func(sess *Session) {
		for i := range sess.Channels {
			if sess.Channels[i].ID == cfg.ID {
				sess.Channels[i] = cfg
				return
			}
		}
	})
}

// capEffects truncates a channel's effect chain to the slot limit
func capEffects(cfg *ChannelConfiguration) {
	if len(cfg.Effects) > MaxEffectSlots {
		cfg.Effects = cfg.Effects[:MaxEffectSlots]
	}
}

// DeleteChannel removes a channel by id. Preset states in songs that still
// reference the id are left in place; they are ignored at apply time.
func (s *Store) DeleteChannel(id string) {
	s.mutate(func(sess *Session) {
		for i := range sess.Channels {
			if sess.Channels[i].ID == id {
				sess.Channels = append(sess.Channels[:i], sess.Channels[i+1:]...)
				return
			}
		}
	})
}

// SetMasterVolume sets the session master volume, clamped to 0-1
func (s *Store) SetMasterVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mutate(func(sess *Session) {
		sess.MasterVolume = v
	})
}

// SetSessionName renames the session in place
func (s *Store) SetSessionName(name string) {
	s.mutate(func(sess *Session) {
		sess.Name = name
	})
}

// SaveAs forks the session under a new identity and makes the fork the
// live session. Both timestamps restart at the fork.
func (s *Store) SaveAs(name string) *Session {
	s.mu.Lock()
	fork := s.session.Clone()
	fork.ID = uuid.New().String()
	fork.Name = name
	now := time.Now()
	fork.CreatedAt = now
	fork.UpdatedAt = now
	s.session = fork
	s.enqueueSave(KeySession, s.session)
	hook := s.onChange
	out := fork.Clone()
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out
}
