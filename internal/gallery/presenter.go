package gallery

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrFullscreenUnavailable is returned when the full-window presentation cannot be entered.
var ErrFullscreenUnavailable = errors.New("fullscreen unavailable")

// Presenter grants or releases the full-window presentation.
type Presenter interface {
	Enter() error
	Exit() error
}

// TerminalPresenter allows fullscreen only when the output is an interactive terminal.
type TerminalPresenter struct {
	out *os.File
}

// NewTerminalPresenter returns a presenter for the given output.
func NewTerminalPresenter(out *os.File) *TerminalPresenter {
	return &TerminalPresenter{out: out}
}

// Enter implements Presenter.
func (p *TerminalPresenter) Enter() error {
	if p.out == nil || !term.IsTerminal(int(p.out.Fd())) {
		return fmt.Errorf("%w: output is not a terminal", ErrFullscreenUnavailable)
	}
	if _, _, err := term.GetSize(int(p.out.Fd())); err != nil {
		return fmt.Errorf("%w: %v", ErrFullscreenUnavailable, err)
	}
	return nil
}

// Exit implements Presenter.
func (p *TerminalPresenter) Exit() error {
	return nil
}
