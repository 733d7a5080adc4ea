package main

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"sequins/internal/config"
	appLog "sequins/internal/log"
	"sequins/internal/model"
	"sequins/internal/sequencer"
)

func init() {
	demoCmd.Flags().DurationVar(&demoFlags.step, `step`, 150*time.Millisecond, `time per step`)
	demoCmd.Flags().BoolVar(&demoFlags.sim, `sim`, false, `play on the simulated display`)
	rootCmd.AddCommand(demoCmd)
}

var demoFlags struct {
	step time.Duration
	sim  bool
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "play a generated pattern through every slot, then clear",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(playDemo)
	},
}

// demoFrame walks a diagonal across the pads with rising velocity, so the
// gamma curve is visible along the run.
func demoFrame(step, slots int) (pads []int, velocity uint8) {
	v := model.MaxVelocity
	if slots > 1 {
		v = 1 + step*(model.MaxVelocity-1)/(slots-1)
	}
	first := step % model.PadCount
	second := (first + 5) % model.PadCount
	return []int{first, second}, uint8(v)
}

func playDemo() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if demoFlags.sim {
		cfg.Display.Driver = config.DriverSim
	}

	port, drv, err := openDisplay(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	if err := drv.Initialize(); err != nil {
		return errors.WrapPrefix(err, "display initialization failed", 0)
	}

	p := sequencer.New(drv, nil)
	slots := drv.Geometry().TotalFrames()
	for step := 0; step < slots; step++ {
		pads, vel := demoFrame(step, slots)
		for _, pad := range pads {
			if err := p.PadOn(pad, vel); err != nil {
				return errors.Wrap(err, 0)
			}
		}
		time.Sleep(demoFlags.step)
		for _, pad := range pads {
			if err := p.PadOff(pad); err != nil {
				return errors.Wrap(err, 0)
			}
		}
	}

	st := p.Status()
	appLog.Info("demo played", "steps", st.ActiveStep, "writes", st.Driver.Writes)
	time.Sleep(4 * demoFlags.step)

	if err := p.Reset(); err != nil {
		return errors.Wrap(err, 0)
	}
	if err := drv.Halt(); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}
