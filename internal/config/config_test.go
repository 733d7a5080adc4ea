package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sequins/internal/matrix"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPartialFileIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ""
display:
  driver: sim
  device_count: 2
  base_address: 0x60
midi:
  input: "Pads"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Listen)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSim, cfg.Display.Driver)
	assert.Equal(t, 400, cfg.Display.BusSpeedKHz)
	assert.Equal(t, "Pads", cfg.MIDI.Input)
	assert.Equal(t, DefaultPadNotes, cfg.MIDI.PadNotes)

	l := cfg.Layout()
	assert.Equal(t, 2, l.DeviceCount)
	assert.EqualValues(t, 0x60, l.BaseAddress)
	assert.Equal(t, 16, l.ColsPerDevice)
	assert.Equal(t, 9, l.RowsPerDevice)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("display: [1, 2"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.ResetSchedule = "0 * * * *"
	cfg.BasicAuth = &BasicAuthConfig{Username: "pad", Password: "secret"}
	cfg.MIDI.Output = "Synth"
	require.NoError(t, cfg.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestSaveErrors(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"duplicate note", func(c *Config) { c.MIDI.PadNotes = []uint8{36, 36} }, false},
		{"note out of range", func(c *Config) { c.MIDI.PadNotes = []uint8{200} }, false},
		{"too many notes", func(c *Config) {
			c.MIDI.PadNotes = make([]uint8, 17)
			for i := range c.MIDI.PadNotes {
				c.MIDI.PadNotes[i] = uint8(i)
			}
		}, false},
		{"bad frame", func(c *Config) { c.Display.FrameWidth = 3 }, false},
		{"grid too tall", func(c *Config) { c.Display.RowsPerDevice = 12 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDefaultLayoutMatchesMatrix(t *testing.T) {
	assert.Equal(t, matrix.DefaultLayout, DefaultConfig().Layout())
}
