package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"sequins/internal/config"
	appLog "sequins/internal/log"
	"sequins/internal/midi"
	"sequins/internal/sequencer"
	"sequins/internal/web"
)

func init() {
	runCmd.Flags().StringVar(&runFlags.input, `input`, ``, `MIDI input port name or prefix`)
	runCmd.Flags().StringVar(&runFlags.output, `output`, ``, `MIDI output port for pass-through`)
	runCmd.Flags().BoolVar(&runFlags.sim, `sim`, false, `use the simulated display instead of I2C`)
	runCmd.Flags().StringVar(&runFlags.listen, `listen`, ``, `status server address, overrides config`)
	runCmd.Flags().BoolVar(&runFlags.save, `save`, false, `store the chosen ports in the config file`)
	rootCmd.AddCommand(runCmd)
}

var runFlags struct {
	input  string
	output string
	sim    bool
	listen string
	save   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "record pad steps onto the display",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(func() error { return runSequencer(cmd) })
	},
}

// applyRunFlags lets command line flags override config values.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if runFlags.input != "" {
		cfg.MIDI.Input = runFlags.input
	}
	if runFlags.output != "" {
		cfg.MIDI.Output = runFlags.output
	}
	if runFlags.sim {
		cfg.Display.Driver = config.DriverSim
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = runFlags.listen
	}
}

func runSequencer(cmd *cobra.Command) error {
	appLog.Info("sequins starting", "version", version)

	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if runFlags.save {
		if err := cfg.Save(path); err != nil {
			return errors.WrapPrefix(err, "failed to save config", 0)
		}
		appLog.Info("config saved", "config_path", path)
	}

	appLog.Info("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"driver", cfg.Display.Driver,
		"midi_input", cfg.MIDI.Input,
		"midi_output", cfg.MIDI.Output,
		"reset_schedule", cfg.ResetSchedule,
	)

	port, drv, err := openDisplay(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := drv.Initialize(); err != nil {
		return errors.WrapPrefix(err, "display initialization failed", 0)
	}

	var send func(msg midi.Message) error
	if cfg.MIDI.Output != "" {
		s, err := midi.OpenOutput(cfg.MIDI.Output)
		if err != nil {
			appLog.Warn("pass-through disabled", "port", cfg.MIDI.Output, "err", err.Error())
		} else {
			send = s
		}
	}
	defer midi.Close()

	p := sequencer.New(drv, send)
	router := &midi.Router{
		Notes:                cfg.MIDI.PadNotes,
		ResetOnProgramChange: cfg.MIDI.ResetOnProgramChange,
		Handler:              p,
	}
	stopMIDI, err := midi.Listen(cfg.MIDI.Input, router)
	if err != nil {
		_ = drv.Halt()
		return errors.Wrap(err, 0)
	}

	stopCron := func() {}
	if cfg.ResetSchedule != "" {
		c, err := sequencer.ScheduleReset(cfg.ResetSchedule, p)
		if err != nil {
			stopMIDI()
			_ = drv.Halt()
			return errors.Wrap(err, 0)
		}
		stopCron = func() { <-c.Stop().Done() }
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	webDone := make(chan struct{})
	if cfg.Listen != "" {
		srv := web.NewServer(cfg, p)
		go func() {
			defer close(webDone)
			if err := srv.Run(ctx); err != nil {
				appLog.Error("HTTP server stopped", err)
			}
		}()
	} else {
		close(webDone)
	}

	<-ctx.Done()

	// Nothing may reach the driver once it is halted.
	stopMIDI()
	stopCron()
	<-webDone
	if err := drv.Halt(); err != nil {
		appLog.Error("display halt failed", err)
	}
	st := drv.Stats()
	appLog.Info("sequins exiting", "writes", st.Writes, "failures", st.Failures)
	return nil
}
