package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("service_name: Basement Rig\nsync_port: 6000\ntap_tempo_cc: 64\nmidi_inputs:\n  - \"Keystation 61\"\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Basement Rig", cfg.ServiceName)
	assert.Equal(t, 6000, cfg.SyncPort)
	assert.Equal(t, 64, cfg.TapTempoCC)
	assert.Equal(t, []string{"Keystation 61"}, cfg.MIDIInputs)

	// Keys the file omits keep their defaults.
	assert.Equal(t, 48000, cfg.SampleRate)
	assert.Equal(t, 4, cfg.LoopBars)
}

func TestLoadFilePartialZeroesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync_port: 0\nsample_rate: 0\n"), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Default().SyncPort, cfg.SyncPort)
	assert.Equal(t, Default().SampleRate, cfg.SampleRate)
}

func TestLoadFileMalformedErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync_port: [not a port\n"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
