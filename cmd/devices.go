package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Aliases: []string{"sources"},
	Short:   "List available capture devices",
	Long:    `List the capture devices the audio backend can open. Set audio.device to one of the names or IDs to pick it.`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		devices, err := svc.ListDevices()
		if err != nil {
			return fmt.Errorf("failed to list capture devices: %w", err)
		}

		fmt.Printf("🎙  Capture devices (%s)\n", runtime.GOOS)
		fmt.Printf("═══════════════════════════════════════\n\n")
		if len(devices) == 0 {
			fmt.Println("  none found")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf(" %s %d. %s\n", marker, d.Index+1, d.Name)
			if verboseLevel >= 1 {
				fmt.Printf("      id: %s\n", d.ID)
			}
		}

		fmt.Printf("\n💡 Configured device: %q (empty means system default)\n", cfg.Audio.Device)
		return nil
	},
}
