package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sequins/internal/midi"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "list MIDI ports",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		run(listPorts)
	},
}

func listPorts() error {
	defer midi.Close()

	fmt.Println("inputs:")
	for _, name := range midi.InPorts() {
		fmt.Println("  " + name)
	}
	fmt.Println("outputs:")
	for _, name := range midi.OutPorts() {
		fmt.Println("  " + name)
	}
	return nil
}
