package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

var (
	// ErrPlaybackFailure marks an asset that could not be played.
	ErrPlaybackFailure = errors.New("playback failure")

	// ErrPlayerUnavailable is returned when no output backend can be used.
	ErrPlayerUnavailable = errors.New("audio player unavailable")

	// ErrUnsupportedFormat is returned by players that cannot decode an asset's encoding.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AudioPlayer plays an audio asset and returns when playback ends or ctx is cancelled.
type AudioPlayer interface {
	Play(ctx context.Context, ref string) error
}

// Resolver maps an asset reference to a local file.
type Resolver interface {
	Path(ref string) (string, error)
}

// CommandPlayer plays assets with an external player program.
type CommandPlayer struct {
	assets   Resolver
	players  []string
	lookPath func(string) (string, error)
}

// NewCommandPlayer returns a player that uses the first available of cvlc, mpv, ffplay and aplay.
func NewCommandPlayer(assets Resolver) *CommandPlayer {
	return &CommandPlayer{
		assets:   assets,
		players:  []string{"cvlc", "mpv", "ffplay", "aplay"},
		lookPath: exec.LookPath,
	}
}

// Play runs the player on the asset file.
func (p *CommandPlayer) Play(ctx context.Context, ref string) error {
	audioFile, err := p.assets.Path(ref)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPlaybackFailure, err)
	}

	if _, err := os.Stat(audioFile); err != nil {
		return fmt.Errorf("%w: audio file not found: %s", ErrPlaybackFailure, ref)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return err
	}

	name, args := playerCommand(player, audioFile)
	cmd := exec.CommandContext(ctx, name, args...)

	slog.Debug("Starting player", "player", player, "asset", ref)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s exited: %v", ErrPlaybackFailure, player, err)
	}

	return nil
}

func playerCommand(player, audioFile string) (string, []string) {
	switch player {
	case "cvlc":
		return "cvlc", []string{"--play-and-exit", "--quiet", audioFile}
	case "mpv":
		return "mpv", []string{"--no-video", "--really-quiet", audioFile}
	case "ffplay":
		return "ffplay", []string{"-nodisp", "-autoexit", "-loglevel", "quiet", audioFile}
	default:
		return player, []string{"-q", audioFile}
	}
}

func (p *CommandPlayer) findAudioPlayer() (string, error) {
	for _, player := range p.players {
		if _, err := p.lookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("%w: no audio player found (tried: %s)", ErrPlayerUnavailable, strings.Join(p.players, ", "))
}

// FallbackPlayer tries Primary and switches to Secondary when Primary has no usable
// output or cannot decode the asset.
type FallbackPlayer struct {
	Primary   AudioPlayer
	Secondary AudioPlayer
}

// Play implements AudioPlayer.
func (f FallbackPlayer) Play(ctx context.Context, ref string) error {
	err := f.Primary.Play(ctx, ref)
	if f.Secondary != nil && (errors.Is(err, ErrPlayerUnavailable) || errors.Is(err, ErrUnsupportedFormat)) {
		slog.Debug("Primary player cannot play asset, falling back", "ref", ref, "error", err)
		return f.Secondary.Play(ctx, ref)
	}
	return err
}
