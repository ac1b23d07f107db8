package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/audiolibrelab/voicecards/internal/app"
	"github.com/audiolibrelab/voicecards/internal/config"
	"github.com/audiolibrelab/voicecards/internal/service"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "voicecards",
	Short: "Voice-annotated picture cards",
	Long: `VoiceCards records short voice clips, pairs them with pictures and
plays them back from a full-screen gallery.

Without a subcommand the interactive editor opens on the create page.`,
	Version: version,
	Args:    cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verboseLevel)

		if cfgFile == "" {
			cfgFile = config.DefaultConfigPath()
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractive(cmd.Context(), app.PageCreate)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/voicecards.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=device tracing")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(galleryCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

func logLevel(level int) slog.Level {
	if level >= 1 {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(level)})
	slog.SetDefault(slog.New(handler))
}

// logToFile points the default logger at path for the lifetime of a terminal UI.
// The returned func restores the previous logger.
func logToFile(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: logLevel(verboseLevel)})))
	return func() {
		slog.SetDefault(prev)
		f.Close()
	}, nil
}

func newService(ctx context.Context) (*service.Service, error) {
	svc, err := service.New(ctx, cfg,
		service.WithRelease("voicecards@"+version),
		service.WithDeviceTrace(verboseLevel >= 2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return svc, nil
}

// runInteractive opens the terminal UI on the given page. Logs go to the
// data directory so they do not tear the screen.
func runInteractive(ctx context.Context, page app.Page) error {
	restore, err := logToFile(cfg.LogPath())
	if err != nil {
		return err
	}
	defer restore()

	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	return app.Run(ctx, svc, page)
}
