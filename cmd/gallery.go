package cmd

import (
	"github.com/audiolibrelab/voicecards/internal/app"

	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Open the gallery page",
	Long: `Open the interactive editor on the gallery page. Arrow keys move between
items, space plays the current one, f toggles full screen.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context(), app.PageGallery)
	},
}
