package play

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// Synthesizer speaks text and returns when speech ends or ctx is cancelled.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// CommandSynthesizer speaks through a local text-to-speech program.
type CommandSynthesizer struct {
	Voice    string
	Language string

	programs []string
	lookPath func(string) (string, error)
}

// NewCommandSynthesizer returns a synthesizer using the first available of
// espeak-ng, espeak, say and spd-say.
func NewCommandSynthesizer(voice, language string) *CommandSynthesizer {
	return &CommandSynthesizer{
		Voice:    voice,
		Language: language,
		programs: []string{"espeak-ng", "espeak", "say", "spd-say"},
		lookPath: exec.LookPath,
	}
}

// Speak implements Synthesizer.
func (s *CommandSynthesizer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	program, err := s.findProgram()
	if err != nil {
		return err
	}

	cmd := exec.CommandContext(ctx, program, s.args(program, text)...)
	slog.Debug("Synthesizing speech", "program", program, "chars", len(text))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s exited: %v", ErrPlaybackFailure, program, err)
	}
	return nil
}

func (s *CommandSynthesizer) args(program, text string) []string {
	switch program {
	case "espeak-ng", "espeak":
		voice := s.Voice
		if voice == "" {
			voice = espeakLanguage(s.Language)
		}
		if voice == "" {
			return []string{"--", text}
		}
		return []string{"-v", voice, "--", text}
	case "say":
		if s.Voice != "" {
			return []string{"-v", s.Voice, text}
		}
		return []string{text}
	case "spd-say":
		args := []string{"-w"}
		if lang := espeakLanguage(s.Language); lang != "" {
			args = append(args, "-l", lang)
		}
		return append(args, text)
	default:
		return []string{text}
	}
}

// espeakLanguage turns a BCP-47 code like "en-US" into the form espeak expects ("en-us").
func espeakLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func (s *CommandSynthesizer) findProgram() (string, error) {
	for _, p := range s.programs {
		if _, err := s.lookPath(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no speech program found (tried: %s)", ErrPlayerUnavailable, strings.Join(s.programs, ", "))
}
