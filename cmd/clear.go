package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every gallery item and its assets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			return fmt.Errorf("refusing to clear the gallery without --yes")
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		n, err := svc.ClearItems()
		if err != nil {
			return fmt.Errorf("failed to clear gallery: %w", err)
		}
		fmt.Printf("Removed %d item(s)\n", n)
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolP("yes", "y", false, "confirm removal")
}
