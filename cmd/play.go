package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [item-id]",
	Short: "Play a gallery item",
	Long: `Play the recording of a gallery item. Items without a recording have
their label spoken instead. Ctrl+C stops playback.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		fmt.Printf("Playing item: %s\n", args[0])
		if err := svc.PlayItem(ctx, args[0]); err != nil && !errors.Is(err, ctx.Err()) {
			return fmt.Errorf("playback failed: %w", err)
		}
		return nil
	},
}
