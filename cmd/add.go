package cmd

import (
	"fmt"

	"github.com/audiolibrelab/voicecards/internal/service"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an item to the gallery",
	Long: `Add a gallery item from existing files. An item needs a label and at least
one of an image or a recording. Use --record to capture the recording from
the microphone instead of --audio.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		label, _ := cmd.Flags().GetString("label")
		image, _ := cmd.Flags().GetString("image")
		audioPath, _ := cmd.Flags().GetString("audio")
		record, _ := cmd.Flags().GetBool("record")

		if record && audioPath != "" {
			return fmt.Errorf("--record and --audio are mutually exclusive")
		}

		svc, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		if record {
			if _, err := recordUntilInterrupt(cmd.Context(), svc); err != nil {
				return err
			}
		}

		item, err := svc.AddItem(service.NewItem{
			Label:        label,
			ImagePath:    image,
			AudioPath:    audioPath,
			UseRecording: record,
		})
		if err != nil {
			return fmt.Errorf("failed to add item: %w", err)
		}

		fmt.Printf("Added item %s (%s)\n", item.ID, item.DisplayLabel())
		return nil
	},
}

func init() {
	addCmd.Flags().StringP("label", "l", "", "item label")
	addCmd.Flags().StringP("image", "i", "", "image file")
	addCmd.Flags().StringP("audio", "a", "", "audio recording to import")
	addCmd.Flags().BoolP("record", "r", false, "record the audio now (Ctrl+C to stop)")
	addCmd.MarkFlagRequired("label")
}
