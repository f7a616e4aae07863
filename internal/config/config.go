package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds host-process settings: ports, device names, stream formats.
// Session content (songs, channels, presets) lives in the session store.
type Config struct {
	// ServiceName is the name advertised to remotes over mDNS.
	ServiceName string `yaml:"service_name"`
	// SyncPort is the TCP port the sync host listens on.
	SyncPort int `yaml:"sync_port"`
	// DataDir overrides the session store location; empty means the
	// platform config directory.
	DataDir string `yaml:"data_dir,omitempty"`
	// MIDIInputs are the input port names to listen on; empty means all.
	MIDIInputs []string `yaml:"midi_inputs,omitempty"`
	// MIDIOutput is the port song-change MIDI messages are sent to.
	MIDIOutput string `yaml:"midi_output,omitempty"`
	// TapTempoCC is the controller number wired to tap tempo; -1 disables.
	TapTempoCC int `yaml:"tap_tempo_cc"`
	// LooperToggleCC toggles the loop transport; -1 disables.
	LooperToggleCC int `yaml:"looper_toggle_cc"`
	// LoopBars auto-stops loop recording after this many bars; 0 records
	// until stopped by hand.
	LoopBars int `yaml:"loop_bars"`

	// Loop playback stream format.
	SampleRate    int `yaml:"sample_rate"`
	AudioChannels int `yaml:"audio_channels"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		ServiceName:    "StageLink Session",
		SyncPort:       52808,
		TapTempoCC:     -1,
		LooperToggleCC: -1,
		LoopBars:       4,
		SampleRate:     48000,
		AudioChannels:  2,
	}
}

// Path returns the config file location under the platform config dir
func Path() (string, error) {
	configHome, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configHome, "stagelink", "config.yaml"), nil
}

// Load reads the config from its default location
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads a config from an explicit path. A missing file yields the
// defaults; an unreadable or malformed one is an error, since a silently
// ignored config mid-soundcheck is worse than refusing to start.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Zero values for these would make the host unusable, so a file that
	// omits them falls back to the defaults.
	if cfg.SyncPort == 0 {
		cfg.SyncPort = Default().SyncPort
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = Default().SampleRate
	}
	if cfg.AudioChannels == 0 {
		cfg.AudioChannels = Default().AudioChannels
	}
	return cfg, nil
}

// Save writes the config to its default location
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
