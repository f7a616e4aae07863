package strip

import (
	"sync"

	"github.com/stagelinkmusic/stagelink/internal/mididev"
	"github.com/stagelinkmusic/stagelink/internal/session"
)

// Rack holds the live strips for a session, keyed by channel id rather than
// list position so structural channel changes can never desynchronize the
// configurations from their runtimes.
type Rack struct {
	mu     sync.RWMutex
	strips map[string]*Strip
}

// NewRack returns an empty rack
func NewRack() *Rack {
	return &Rack{strips: map[string]*Strip{}}
}

// Sync reconciles the rack against the session's channel list: new channels
// get strips, existing strips get the updated configuration, and strips for
// removed channels are dropped. sinkFor resolves a channel's instrument sink
// and may return nil for channels without one.
func (r *Rack) Sync(channels []session.ChannelConfiguration, sinkFor func(session.ChannelConfiguration) Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(channels))
	for _, cfg := range channels {
		seen[cfg.ID] = true
		if st, ok := r.strips[cfg.ID]; ok {
			st.SetConfig(cfg)
			if sinkFor != nil {
				st.SetSink(sinkFor(cfg))
			}
			continue
		}
		var sink Sink
		if sinkFor != nil {
			sink = sinkFor(cfg)
		}
		r.strips[cfg.ID] = New(cfg, sink)
	}
	for id := range r.strips {
		if !seen[id] {
			delete(r.strips, id)
		}
	}
}

// Get returns the strip for a channel id, or nil
func (r *Rack) Get(id string) *Strip {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strips[id]
}

// Len returns the number of live strips
func (r *Rack) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strips)
}

// Process fans one event out to every strip; each strip applies its own gate
func (r *Rack) Process(ev mididev.Event, ctx Context) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, st := range r.strips {
		st.Process(ev, ctx)
	}
}

// ApplySongState applies a song's sparse channel patches to matching strips.
// Patches referencing channels that no longer exist are ignored.
func (r *Rack) ApplySongState(states []session.ChannelPresetState) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, st := range states {
		if target, ok := r.strips[st.ChannelID]; ok {
			target.ApplyPresetState(st)
		}
	}
}
