package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"sequins/internal/matrix"
)

// DefaultPadNotes maps pads 0..15 (row major) to the MIDI notes sent by a
// 16 pad drum controller.
var DefaultPadNotes = []uint8{41, 45, 48, 57, 42, 60, 62, 43, 37, 38, 40, 75, 49, 35, 36, 55}

const (
	DriverI2C = "i2c"
	DriverSim = "sim"

	defaultListen    = "127.0.0.1:8080"
	defaultLogLevel  = "info"
	defaultMIDIInput = "loopMIDI Port"
	defaultBusKHz    = 400
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the status API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// DisplayConfig describes the LED grid and the bus it hangs off.
type DisplayConfig struct {
	// Driver selects the register port: "i2c" or "sim".
	Driver string `yaml:"driver" json:"driver"`
	// Bus is the periph.io I2C bus name; empty picks the first bus.
	Bus         string `yaml:"bus" json:"bus"`
	BusSpeedKHz int    `yaml:"bus_speed_khz" json:"bus_speed_khz"`

	DeviceCount   int    `yaml:"device_count" json:"device_count"`
	BaseAddress   uint16 `yaml:"base_address" json:"base_address"`
	RowsPerDevice int    `yaml:"rows_per_device" json:"rows_per_device"`
	ColsPerDevice int    `yaml:"cols_per_device" json:"cols_per_device"`
	FrameWidth    int    `yaml:"frame_width" json:"frame_width"`
	FrameHeight   int    `yaml:"frame_height" json:"frame_height"`
	RowSpacing    int    `yaml:"row_spacing" json:"row_spacing"`
}

// MIDIConfig selects the MIDI ports and the pad note map.
type MIDIConfig struct {
	// Input is the name, or name prefix, of the port the controller is on.
	Input string `yaml:"input" json:"input"`
	// Output receives every incoming message unchanged. Optional.
	Output string `yaml:"output" json:"output"`
	// PadNotes lists the note of each pad, row major.
	PadNotes []uint8 `yaml:"pad_notes" json:"pad_notes"`
	// ResetOnProgramChange clears the pattern when a program change arrives.
	ResetOnProgramChange bool `yaml:"reset_on_program_change" json:"reset_on_program_change"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the status server. Empty
	// disables the server.
	Listen string `yaml:"listen" json:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// ResetSchedule is an optional cron spec (e.g. "0 */1 * * *") on which
	// the pattern is reset.
	ResetSchedule string `yaml:"reset_schedule" json:"reset_schedule"`

	Display DisplayConfig `yaml:"display" json:"display"`
	MIDI    MIDIConfig    `yaml:"midi" json:"midi"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	l := matrix.DefaultLayout
	return &Config{
		Listen:   defaultListen,
		LogLevel: defaultLogLevel,
		Display: DisplayConfig{
			Driver:        DriverI2C,
			BusSpeedKHz:   defaultBusKHz,
			DeviceCount:   l.DeviceCount,
			BaseAddress:   l.BaseAddress,
			RowsPerDevice: l.RowsPerDevice,
			ColsPerDevice: l.ColsPerDevice,
			FrameWidth:    l.FrameWidth,
			FrameHeight:   l.FrameHeight,
			RowSpacing:    l.RowSpacing,
		},
		MIDI: MIDIConfig{
			Input:                defaultMIDIInput,
			PadNotes:             append([]uint8(nil), DefaultPadNotes...),
			ResetOnProgramChange: true,
		},
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave. Listen is left alone: empty means off.
func (c *Config) Normalize() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}

	d, l := &c.Display, matrix.DefaultLayout
	switch d.Driver {
	case DriverI2C, DriverSim:
	default:
		d.Driver = DriverI2C
	}
	if d.BusSpeedKHz <= 0 {
		d.BusSpeedKHz = defaultBusKHz
	}
	if d.DeviceCount <= 0 {
		d.DeviceCount = l.DeviceCount
	}
	if d.BaseAddress == 0 {
		d.BaseAddress = l.BaseAddress
	}
	if d.RowsPerDevice <= 0 {
		d.RowsPerDevice = l.RowsPerDevice
	}
	if d.ColsPerDevice <= 0 {
		d.ColsPerDevice = l.ColsPerDevice
	}
	if d.FrameWidth <= 0 {
		d.FrameWidth = l.FrameWidth
	}
	if d.FrameHeight <= 0 {
		d.FrameHeight = l.FrameHeight
	}
	// RowSpacing 0 is a valid layout, only negative values are reset.
	if d.RowSpacing < 0 {
		d.RowSpacing = l.RowSpacing
	}

	if c.MIDI.Input == "" {
		c.MIDI.Input = defaultMIDIInput
	}
	if len(c.MIDI.PadNotes) == 0 {
		c.MIDI.PadNotes = append([]uint8(nil), DefaultPadNotes...)
	}
}

// Validate reports settings that cannot be repaired by Normalize.
func (c *Config) Validate() error {
	if len(c.MIDI.PadNotes) > 16 {
		return fmt.Errorf("config: midi.pad_notes has %d entries, at most 16 pads exist", len(c.MIDI.PadNotes))
	}
	seen := make(map[uint8]bool, len(c.MIDI.PadNotes))
	for _, n := range c.MIDI.PadNotes {
		if n > 127 {
			return fmt.Errorf("config: midi.pad_notes: note %d out of range", n)
		}
		if seen[n] {
			return fmt.Errorf("config: midi.pad_notes: note %d listed twice", n)
		}
		seen[n] = true
	}
	if _, err := matrix.NewGeometry(c.Layout()); err != nil {
		return fmt.Errorf("config: display: %w", err)
	}
	return nil
}

// Layout converts the display section into a matrix layout.
func (c *Config) Layout() matrix.Layout {
	d := c.Display
	return matrix.Layout{
		DeviceCount:   d.DeviceCount,
		BaseAddress:   d.BaseAddress,
		RowsPerDevice: d.RowsPerDevice,
		ColsPerDevice: d.ColsPerDevice,
		FrameWidth:    d.FrameWidth,
		FrameHeight:   d.FrameHeight,
		RowSpacing:    d.RowSpacing,
	}
}

// DefaultPath returns the per-user config location,
// e.g. ~/.config/sequins/config.yaml on Linux.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sequins", "config.yaml"), nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directories created) and returned.
//   - Otherwise the YAML is unmarshalled into Config and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return cfg with the error so the caller can still run.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to path atomically, via a temp file
// in the same directory and a rename. The file ends up with 0600 perms.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".sequins-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
