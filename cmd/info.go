package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show resolved file paths and gallery status",
	Long:  `Display the resolved storage paths, the active profile and a summary of the gallery contents.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("=== FILE PATHS ===\n")
		fmt.Printf("config: %s\n", cfgFile)
		fmt.Printf("database: %s\n", cfg.DatabasePath())
		fmt.Printf("assets: %s\n", cfg.AssetsPath())
		fmt.Printf("log: %s\n", cfg.LogPath())

		profileName := cfg.Profile
		if profileName == "" {
			profileName = "default"
		}
		fmt.Printf("\n=== PROFILE ===\n")
		fmt.Printf("active: %s\n", profileName)

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		status, err := svc.Status()
		if err != nil {
			return fmt.Errorf("failed to read status: %w", err)
		}

		fmt.Printf("\n=== GALLERY ===\n")
		fmt.Printf("items: %d\n", status.ItemCount)
		fmt.Printf("recorder: %s\n", status.Recorder.Status)
		fmt.Printf("speech: %s (%s)\n", cfg.Speech.Backend, cfg.Speech.Language)
		return nil
	},
}
