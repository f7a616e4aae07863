package netsync

import (
	"github.com/stagelinkmusic/stagelink/internal/session"
)

// Service identity used for mDNS advertise/browse
const (
	ServiceType   = "_stagelink._tcp"
	ServiceDomain = "local."
	DefaultPort   = 52808
)

// Client → host commands
const (
	CmdRequestPresets  = "requestPresets"
	CmdSelectPreset    = "selectPreset"
	CmdSetMasterVolume = "setMasterVolume"
	CmdPing            = "ping"
)

// Command is the JSON envelope a client sends. Index and Value are only
// present for the commands that need them.
type Command struct {
	Command string   `json:"command"`
	Index   *int     `json:"index,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

// Push is a host → client message. Every key is independently optional:
// receivers merge whatever is present into their state instead of expecting
// a full snapshot.
type Push struct {
	Presets           []session.PresetSummary `json:"presets,omitempty"`
	ActivePresetIndex *int                    `json:"activePresetIndex,omitempty"`
	MasterVolume      *float64                `json:"masterVolume,omitempty"`
	Response          string                  `json:"response,omitempty"`
}
