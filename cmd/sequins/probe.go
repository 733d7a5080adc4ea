package main

import (
	"fmt"

	"github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"sequins/internal/config"
)

func init() {
	probeCmd.Flags().BoolVar(&probeSim, `sim`, false, `probe the simulated display`)
	rootCmd.AddCommand(probeCmd)
}

var probeSim bool

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "check that every display device answers on the bus",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(probeDevices)
	},
}

func probeDevices() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	if probeSim {
		cfg.Display.Driver = config.DriverSim
	}

	port, drv, err := openDisplay(cfg)
	if err != nil {
		return err
	}
	defer port.Close()

	geo := drv.Geometry()
	var missing int
	for dev := 0; dev < cfg.Display.DeviceCount; dev++ {
		addr := geo.DeviceAddress(dev)
		state := "ok"
		if !port.Probe(addr) {
			state = "missing"
			missing++
		}
		fmt.Printf("device %d at 0x%02x: %s\n", dev, addr, state)
	}
	if missing > 0 {
		return errors.Errorf("%d of %d devices missing on %s", missing, cfg.Display.DeviceCount, port.String())
	}
	return nil
}
