package netsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/stagelinkmusic/stagelink/internal/session"
)

// Status is the only user-visible failure surface of the sync layer
type Status string

const (
	StatusSearching Status = "searching"
	StatusConnected Status = "connected"
	StatusError     Status = "error"
)

// RemoteState is the client's merged copy of the host's pushed state.
// HasActiveIndex distinguishes "no active preset" from index 0.
type RemoteState struct {
	Presets           []session.PresetSummary
	ActivePresetIndex int
	HasActiveIndex    bool
	MasterVolume      float64
}

// ClientConfig tunes a Client. Zero values get sensible defaults.
type ClientConfig struct {
	ReconnectDelay time.Duration // default 3s
	PingInterval   time.Duration // default 5s
	OnState        func(RemoteState)
	OnStatus       func(Status)
}

// Client discovers exactly one host (first browse result wins) and connects
// to it immediately, with no confirmation step. On any connection failure it
// waits ReconnectDelay and restarts discovery from scratch rather than
// retrying a stale endpoint. A periodic ping detects silent drops; a missed
// pong alone never disconnects, only a socket-level error does.
type Client struct {
	cfg ClientConfig

	mu           sync.Mutex
	conn         net.Conn
	wmu          sync.Mutex
	state        RemoteState
	status       Status
	closed       bool
	cancelBrowse context.CancelFunc
	reconnect    *time.Timer
	stopPing     chan struct{}
}

// NewClient returns an idle client; Start begins discovery
func NewClient(cfg ClientConfig) *Client {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = 5 * time.Second
	}
	return &Client{cfg: cfg, status: StatusSearching}
}

// Start begins browsing for a host in the background
func (c *Client) Start() {
	go c.browse()
}

func (c *Client) browse() {
	c.setStatus(StatusSearching)

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		log.Printf("netsync: resolver: %v", err)
		c.setStatus(StatusError)
		c.scheduleReconnect()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return
	}
	c.cancelBrowse = cancel
	c.mu.Unlock()

	entries := make(chan *zeroconf.ServiceEntry, 4)
	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		cancel()
		log.Printf("netsync: browse: %v", err)
		c.setStatus(StatusError)
		c.scheduleReconnect()
		return
	}

	for entry := range entries {
		if entry == nil || len(entry.AddrIPv4) == 0 {
			continue
		}
		// First result wins; stop discovery before connecting so it never
		// runs alongside an established connection.
		cancel()
		addr := fmt.Sprintf("%s:%d", entry.AddrIPv4[0], entry.Port)
		if err := c.Connect(addr); err != nil {
			log.Printf("netsync: connect %s: %v", addr, err)
			c.setStatus(StatusError)
			c.scheduleReconnect()
		}
		return
	}

	// Browse context ended without a usable entry.
	c.scheduleReconnect()
}

// Connect dials a host directly and starts the read and keepalive loops.
// Discovery normally calls this; tests may call it with a known address.
func (c *Client) Connect(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return fmt.Errorf("client closed")
	}
	c.conn = conn
	c.stopPing = make(chan struct{})
	stopPing := c.stopPing
	c.mu.Unlock()

	c.setStatus(StatusConnected)
	go c.readLoop(conn)
	go c.keepalive(stopPing)
	c.RequestPresets()
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	reader := NewFrameReader(conn)
	for {
		payload, err := reader.ReadFrame()
		if err != nil {
			c.teardown(conn)
			return
		}
		var push Push
		if err := json.Unmarshal(payload, &push); err != nil {
			log.Printf("netsync: dropping malformed push: %v", err)
			continue
		}
		c.merge(push)
	}
}

// merge folds one push into the client state; every key is optional and
// absent keys leave the existing state alone.
func (c *Client) merge(push Push) {
	if push.Response == "pong" {
		return
	}
	c.mu.Lock()
	if push.Presets != nil {
		c.state.Presets = push.Presets
	}
	if push.ActivePresetIndex != nil {
		c.state.ActivePresetIndex = *push.ActivePresetIndex
		c.state.HasActiveIndex = true
	}
	if push.MasterVolume != nil {
		c.state.MasterVolume = *push.MasterVolume
	}
	state := c.state
	onState := c.cfg.OnState
	c.mu.Unlock()
	if onState != nil {
		onState(state)
	}
}

func (c *Client) keepalive(stop chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.send(Command{Command: CmdPing})
		case <-stop:
			return
		}
	}
}

// teardown closes the dead connection and schedules a fresh discovery pass
func (c *Client) teardown(conn net.Conn) {
	c.mu.Lock()
	if c.conn != conn {
		// Already torn down or replaced.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	closed := c.closed
	c.mu.Unlock()
	conn.Close()
	if closed {
		return
	}
	c.setStatus(StatusSearching)
	c.scheduleReconnect()
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnect != nil {
		return
	}
	c.reconnect = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnect = nil
		closed := c.closed
		c.mu.Unlock()
		if !closed {
			c.browse()
		}
	})
}

func (c *Client) send(cmd Command) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return
	}
	c.wmu.Lock()
	err = WriteFrame(conn, payload)
	c.wmu.Unlock()
	if err != nil {
		c.teardown(conn)
	}
}

// RequestPresets asks the host for the full flattened state
func (c *Client) RequestPresets() {
	c.send(Command{Command: CmdRequestPresets})
}

// SelectPreset asks the host to activate a flattened preset index
func (c *Client) SelectPreset(index int) {
	c.send(Command{Command: CmdSelectPreset, Index: &index})
}

// SetMasterVolume pushes a master volume change to the host
func (c *Client) SetMasterVolume(v float64) {
	c.send(Command{Command: CmdSetMasterVolume, Value: &v})
}

// State returns the merged remote state
func (c *Client) State() RemoteState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current connectivity status
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	onStatus := c.cfg.OnStatus
	c.mu.Unlock()
	if changed && onStatus != nil {
		onStatus(s)
	}
}

// Close disconnects and stops discovery and reconnect timers for good
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.cancelBrowse != nil {
		c.cancelBrowse()
		c.cancelBrowse = nil
	}
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	if c.stopPing != nil {
		close(c.stopPing)
		c.stopPing = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}
