package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/audiolibrelab/voicecards/internal/audio"
	"github.com/audiolibrelab/voicecards/internal/service"

	"github.com/spf13/cobra"
)

var recordCmd = &cobra.Command{
	Use:   "record [label]",
	Short: "Record a voice clip from the capture device",
	Long: `Record from the configured capture device until Ctrl+C is pressed.
With a label the recording is saved as a new gallery item, optionally with
an image given by --image. Without one the recording is discarded after
its asset reference is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		image, _ := cmd.Flags().GetString("image")

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		ref, err := recordUntilInterrupt(cmd.Context(), svc)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			fmt.Printf("Recorded %s (not saved, pass a label to keep it)\n", ref)
			return svc.DiscardRecording()
		}

		item, err := svc.AddItem(service.NewItem{
			Label:        args[0],
			ImagePath:    image,
			UseRecording: true,
		})
		if err != nil {
			return fmt.Errorf("failed to save item: %w", err)
		}
		fmt.Printf("Saved item %s (%s)\n", item.ID, item.DisplayLabel())
		return nil
	},
}

// recordUntilInterrupt records until SIGINT or SIGTERM and returns the finished asset reference.
func recordUntilInterrupt(ctx context.Context, svc *service.Service) (string, error) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.SetTickObserver(func(s audio.Snapshot) {
		fmt.Fprintf(os.Stderr, "\r● %s  %s", s.Elapsed(), meter(s.Level))
	})
	defer svc.SetTickObserver(nil)

	if err := svc.StartRecording(ctx); err != nil {
		return "", fmt.Errorf("failed to start recording: %w", err)
	}
	slog.Info("Recording - press Ctrl+C to stop")

	<-sigCtx.Done()
	fmt.Fprintln(os.Stderr)
	slog.Info("Stopping recording...")

	ref, err := svc.StopRecording()
	if err != nil {
		return "", fmt.Errorf("failed to stop recording: %w", err)
	}
	return ref, nil
}

func meter(level int) string {
	const width = 20
	filled := level * width / 100
	bar := make([]rune, width)
	for i := range bar {
		if i < filled {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}
	return string(bar)
}

func init() {
	recordCmd.Flags().String("image", "", "image file to attach when saving")
}
