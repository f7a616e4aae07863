package netsync

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/stagelinkmusic/stagelink/internal/session"
)

// SessionService is the slice of the session store the host needs. The
// store satisfies it directly.
type SessionService interface {
	Session() *session.Session
	SetMasterVolume(v float64)
}

// HostConfig wires a Host to its collaborators. OnSelectPreset is invoked
// with the resolved (songIndex, sectionIndex) pair when a client selects a
// preset; the engine activates the song and applies patches there.
type HostConfig struct {
	ServiceName    string
	Port           int
	Service        SessionService
	OnSelectPreset func(songIndex, sectionIndex int)
}

// Host accepts remote-client connections, answers their commands, and
// pushes session state to every connected peer.
type Host struct {
	cfg HostConfig

	handlers map[string]func(*peer, Command)

	mu       sync.Mutex
	listener net.Listener
	mdns     *zeroconf.Server
	peers    map[*peer]bool
	closed   bool
}

// peer is one connected client with serialized writes
type peer struct {
	conn net.Conn
	wmu  sync.Mutex
}

func (p *peer) send(push Push) error {
	payload, err := json.Marshal(push)
	if err != nil {
		return err
	}
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return WriteFrame(p.conn, payload)
}

// NewHost creates a host; call Serve (and usually Advertise) to go live
func NewHost(cfg HostConfig) *Host {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	h := &Host{cfg: cfg, peers: map[*peer]bool{}}
	h.handlers = map[string]func(*peer, Command){
		CmdRequestPresets:  h.handleRequestPresets,
		CmdSelectPreset:    h.handleSelectPreset,
		CmdSetMasterVolume: h.handleSetMasterVolume,
		CmdPing:            h.handlePing,
	}
	return h
}

// Listen opens the TCP listener on the configured port
func (h *Host) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", h.cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

// Advertise registers the mDNS service so clients can find the host.
// Discovery stops when Close tears the registration down.
func (h *Host) Advertise() error {
	server, err := zeroconf.Register(h.cfg.ServiceName, ServiceType, ServiceDomain, h.cfg.Port, nil, nil)
	if err != nil {
		return fmt.Errorf("advertise: %w", err)
	}
	h.mu.Lock()
	h.mdns = server
	h.mu.Unlock()
	return nil
}

// Serve accepts connections on ln until the listener is closed. It blocks;
// run it in a goroutine.
func (h *Host) Serve(ln net.Listener) {
	h.mu.Lock()
	h.listener = ln
	h.mu.Unlock()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		p := &peer{conn: conn}
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			conn.Close()
			return
		}
		h.peers[p] = true
		h.mu.Unlock()
		go h.servePeer(p)
	}
}

// servePeer reads frames until the socket dies. One malformed message is
// dropped and the connection lives on; a read error tears the peer down.
func (h *Host) servePeer(p *peer) {
	defer h.dropPeer(p)
	reader := NewFrameReader(p.conn)
	for {
		payload, err := reader.ReadFrame()
		if err != nil {
			return
		}
		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Printf("netsync: dropping malformed message: %v", err)
			continue
		}
		handler, ok := h.handlers[cmd.Command]
		if !ok {
			log.Printf("netsync: dropping unknown command %q", cmd.Command)
			continue
		}
		handler(p, cmd)
	}
}

func (h *Host) dropPeer(p *peer) {
	h.mu.Lock()
	delete(h.peers, p)
	h.mu.Unlock()
	p.conn.Close()
}

func (h *Host) handleRequestPresets(p *peer, _ Command) {
	sess := h.cfg.Service.Session()
	push := Push{
		Presets:      session.FlattenPresets(sess),
		MasterVolume: &sess.MasterVolume,
	}
	if idx, ok := session.ActivePresetIndex(sess); ok {
		push.ActivePresetIndex = &idx
	}
	if err := p.send(push); err != nil {
		log.Printf("netsync: reply failed: %v", err)
	}
}

func (h *Host) handleSelectPreset(p *peer, cmd Command) {
	if cmd.Index == nil {
		return
	}
	// The song list may have changed since the client fetched its presets,
	// so the flattened index is resolved against the session as it is now.
	sess := h.cfg.Service.Session()
	songIdx, secIdx, ok := session.ResolvePresetIndex(sess, *cmd.Index)
	if !ok {
		return
	}
	if h.cfg.OnSelectPreset != nil {
		h.cfg.OnSelectPreset(songIdx, secIdx)
	}
	h.Broadcast(Push{ActivePresetIndex: cmd.Index})
}

func (h *Host) handleSetMasterVolume(p *peer, cmd Command) {
	if cmd.Value == nil {
		return
	}
	h.cfg.Service.SetMasterVolume(*cmd.Value)
	v := *cmd.Value
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	h.Broadcast(Push{MasterVolume: &v})
}

func (h *Host) handlePing(p *peer, _ Command) {
	if err := p.send(Push{Response: "pong"}); err != nil {
		log.Printf("netsync: pong failed: %v", err)
	}
}

// Broadcast pushes a message to every connected peer. Peers whose sockets
// fail are dropped; the rest still get the message.
func (h *Host) Broadcast(push Push) {
	h.mu.Lock()
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		if err := p.send(push); err != nil {
			h.dropPeer(p)
		}
	}
}

// BroadcastState pushes the full flattened state to every peer; the host
// wires this to the session store's change hook.
func (h *Host) BroadcastState() {
	sess := h.cfg.Service.Session()
	push := Push{
		Presets:      session.FlattenPresets(sess),
		MasterVolume: &sess.MasterVolume,
	}
	if idx, ok := session.ActivePresetIndex(sess); ok {
		push.ActivePresetIndex = &idx
	}
	h.Broadcast(push)
}

// PeerCount returns the number of connected clients
func (h *Host) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

// Close stops advertising, closes the listener, and disconnects all peers
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	if h.mdns != nil {
		h.mdns.Shutdown()
		h.mdns = nil
	}
	if h.listener != nil {
		h.listener.Close()
		h.listener = nil
	}
	peers := make([]*peer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.peers = map[*peer]bool{}
	h.mu.Unlock()
	for _, p := range peers {
		p.conn.Close()
	}
}
