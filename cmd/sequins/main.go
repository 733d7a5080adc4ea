package main

import (
	"fmt"
	"os"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"
	// Registers the RtMidi backend with gomidi.
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"sequins/internal/bus"
	"sequins/internal/config"
	appLog "sequins/internal/log"
	"sequins/internal/matrix"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:          "sequins",
	Short:        "sequins records drum pad steps onto an LED matrix",
	Long:         "sequins listens to a MIDI pad controller and shows every recorded step on a grid of I2C LED matrix drivers",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
		os.Exit(1)
	},
}

var (
	configFlag string
	debugFlag  bool
)

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().StringVarP(&configFlag, `config`, `c`, ``, `config file (default: user config dir)`)
	rootCmd.PersistentFlags().BoolVar(&debugFlag, `debug`, false, `debug logging and error stacks`)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run executes fn and reports its error, with a stack trace under --debug.
func run(fn func() error) {
	err := fn()
	if err == nil {
		return
	}
	if stackFramer, ok := err.(interface{ ErrorStack() string }); debugFlag && ok {
		fmt.Fprintln(os.Stderr, stackFramer.ErrorStack())
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}

// loadConfig resolves the config path, loads it and applies the log level.
func loadConfig() (*config.Config, string, error) {
	path := configFlag
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, "", errors.Wrap(err, 0)
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, errors.WrapPrefix(err, "failed to load config "+path, 0)
	}

	level := appLog.ParseLevel(cfg.LogLevel)
	if debugFlag {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)
	return cfg, path, nil
}

// openDisplay opens the configured register port and builds a driver on it.
// The driver is not initialized yet.
func openDisplay(cfg *config.Config) (bus.Port, *matrix.Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, 0)
	}
	geo, err := matrix.NewGeometry(cfg.Layout())
	if err != nil {
		return nil, nil, errors.Wrap(err, 0)
	}

	d := cfg.Display
	speed := bus.DefaultSpeed
	if d.BusSpeedKHz > 0 {
		speed = bus.SpeedKHz(d.BusSpeedKHz)
	}
	port, err := bus.OpenPort(d.Driver, d.Bus, speed, cfg.Layout())
	if err != nil {
		return nil, nil, errors.Wrap(err, 0)
	}

	appLog.Info("display port opened",
		"port", port.String(),
		"driver", d.Driver,
		"devices", d.DeviceCount,
		"slots", geo.TotalFrames(),
	)
	return port, matrix.New(port, geo, nil), nil
}
