// Package gallery implements the carousel view: navigation, fullscreen and playback of items.
package gallery

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/play"
	"github.com/audiolibrelab/voicecards/internal/report"
)

// EmptyText is shown instead of the carousel when there are no items.
const EmptyText = "No items in gallery"

// Player is the playback engine the controller drives.
type Player interface {
	Play(item media.MediaItem) <-chan play.Result
	Complete(res play.Result) play.State
	Stop()
}

// PlaybackDoneMsg carries the terminal result of a playback.
type PlaybackDoneMsg struct {
	Result play.Result
}

// FullscreenMsg reports the outcome of a fullscreen request.
type FullscreenMsg struct {
	Active bool
	Err    error
}

// Controller is the gallery model. It is a value type; Update returns the new state.
type Controller struct {
	carousel  Carousel
	player    Player
	presenter Presenter
	sink      report.Sink
	keys      KeyMap
	help      help.Model

	playing    bool
	fullscreen bool
	mounted    bool

	width, height int
}

// New creates an unmounted controller over items.
func New(items []media.MediaItem, player Player, presenter Presenter, sink report.Sink) Controller {
	if sink == nil {
		sink = report.Discard
	}
	return Controller{
		carousel:  NewCarousel(items),
		player:    player,
		presenter: presenter,
		sink:      sink,
		keys:      DefaultKeyMap,
		help:      help.New(),
	}
}

// Init implements tea.Model.
func (m Controller) Init() tea.Cmd { return nil }

// Index returns the selected position.
func (m Controller) Index() int { return m.carousel.Index() }

// Len returns the number of items.
func (m Controller) Len() int { return m.carousel.Len() }

// Playing reports whether a playback started by this controller is audible.
func (m Controller) Playing() bool { return m.playing }

// Fullscreen reports whether the full-window presentation is active.
func (m Controller) Fullscreen() bool { return m.fullscreen }

// Mounted reports whether the controller currently receives input.
func (m Controller) Mounted() bool { return m.mounted }

// Active returns the selected item.
func (m Controller) Active() (media.MediaItem, bool) { return m.carousel.Active() }

// Mount starts delivering keyboard and mouse input to the controller.
func (m Controller) Mount() Controller {
	m.mounted = true
	return m
}

// Unmount stops input handling, silences playback and leaves fullscreen.
func (m Controller) Unmount() (Controller, tea.Cmd) {
	m.mounted = false
	if m.playing {
		m.player.Stop()
		m.playing = false
	}
	if !m.fullscreen {
		return m, nil
	}
	m.fullscreen = false
	presenter := m.presenter
	return m, tea.Batch(tea.ExitAltScreen, func() tea.Msg {
		if err := presenter.Exit(); err != nil {
			slog.Debug("Leaving fullscreen failed", "error", err)
		}
		return nil
	})
}

// SetItems replaces the items and revalidates the selection.
func (m Controller) SetItems(items []media.MediaItem) Controller {
	m.carousel.SetItems(items)
	return m
}

// Update implements the controller's state machine.
func (m Controller) Update(msg tea.Msg) (Controller, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case PlaybackDoneMsg:
		state := m.player.Complete(msg.Result)
		m.playing = state.IsPlaying
		return m, nil

	case FullscreenMsg:
		if msg.Err != nil {
			m.sink.Report(report.KindFullscreenUnavailable, msg.Err)
			return m, nil
		}
		if msg.Active == m.fullscreen || (msg.Active && !m.mounted) {
			return m, nil
		}
		m.fullscreen = msg.Active
		if m.fullscreen {
			return m, tea.EnterAltScreen
		}
		return m, tea.ExitAltScreen

	case tea.KeyMsg:
		if !m.mounted {
			return m, nil
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		if !m.mounted {
			return m, nil
		}
		return m.handleMouse(msg)
	}

	return m, nil
}

func (m Controller) handleKey(msg tea.KeyMsg) (Controller, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Previous):
		m.carousel.Previous()
	case key.Matches(msg, m.keys.Next):
		m.carousel.Next()
	case key.Matches(msg, m.keys.Play):
		// Consumed here so space never reaches a scrolling parent.
		return m.playActive()
	case key.Matches(msg, m.keys.Fullscreen):
		return m, m.requestFullscreen(!m.fullscreen)
	case key.Matches(msg, m.keys.Exit):
		if m.fullscreen {
			return m, m.requestFullscreen(false)
		}
	case key.Matches(msg, m.keys.GoTo):
		var n int
		if _, err := fmt.Sscanf(msg.String(), "%d", &n); err == nil {
			m.carousel.GoTo(n - 1)
		}
	}
	return m, nil
}

func (m Controller) handleMouse(msg tea.MouseMsg) (Controller, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	if m.carousel.Len() == 0 {
		return m, nil
	}

	target, index := computeLayout(m.width, m.height, m.carousel.Len()).hit(msg.X, msg.Y)
	switch target {
	case targetPrevious:
		m.carousel.Previous()
	case targetNext:
		m.carousel.Next()
	case targetSegment:
		m.carousel.GoTo(index)
	case targetFullscreen:
		return m, m.requestFullscreen(!m.fullscreen)
	case targetPlay, targetMain:
		return m.playActive()
	}
	return m, nil
}

func (m Controller) playActive() (Controller, tea.Cmd) {
	item, ok := m.carousel.Active()
	if !ok {
		return m, nil
	}

	results := m.player.Play(item)
	if results == nil {
		return m, nil
	}
	m.playing = true
	return m, waitForPlayback(results)
}

func waitForPlayback(results <-chan play.Result) tea.Cmd {
	return func() tea.Msg {
		return PlaybackDoneMsg{Result: <-results}
	}
}

func (m Controller) requestFullscreen(active bool) tea.Cmd {
	presenter := m.presenter
	if presenter == nil {
		return func() tea.Msg {
			return FullscreenMsg{Active: active, Err: fmt.Errorf("%w: no presenter", ErrFullscreenUnavailable)}
		}
	}
	return func() tea.Msg {
		var err error
		if active {
			err = presenter.Enter()
		} else {
			err = presenter.Exit()
		}
		return FullscreenMsg{Active: active, Err: err}
	}
}

// View renders the gallery.
func (m Controller) View() string {
	if m.carousel.Len() == 0 {
		return EmptyText
	}

	l := computeLayout(m.width, m.height, m.carousel.Len())
	item, _ := m.carousel.Active()

	rows := make([]string, 0, l.height)
	rows = append(rows, m.renderTopBar(l, item))
	rows = append(rows, m.renderMain(l, item))
	rows = append(rows, m.renderIndicator(l))
	rows = append(rows, m.help.View(m.keys))

	return strings.Join(rows, "\n")
}

func (m Controller) renderTopBar(l layout, item media.MediaItem) string {
	labelWidth := l.playButton.from - 1
	if labelWidth < 0 {
		labelWidth = 0
	}
	label := truncate(" "+item.DisplayLabel(), labelWidth)
	label = titleStyle.Render(label) + strings.Repeat(" ", labelWidth-lipgloss.Width(label)+1)

	playStyle := buttonStyle
	if m.playing {
		playStyle = activeButtonStyle
	}
	fullLabel := fullscreenButton
	if m.fullscreen {
		fullLabel = windowedButton
	}

	return label + playStyle.Render(playButton) + strings.Repeat(" ", buttonGap) + buttonStyle.Render(fullLabel)
}

func (m Controller) renderMain(l layout, item media.MediaItem) string {
	mainHeight := l.mainEnd - l.mainTop
	innerWidth := l.width
	if l.controls {
		innerWidth -= 2 * controlWidth
	}

	var lines []string
	lines = append(lines, cardTitleStyle.Render(item.DisplayLabel()), "")
	if item.HasImage() {
		lines = append(lines, dimStyle.Render("▣ image"))
	}
	switch {
	case item.HasAudio():
		lines = append(lines, dimStyle.Render("♪ recording"))
	case strings.TrimSpace(item.Label) != "":
		lines = append(lines, dimStyle.Render("♪ spoken label"))
	}
	if m.playing {
		lines = append(lines, "", playingStyle.Render("▶ playing"))
	}

	card := lipgloss.JoinVertical(lipgloss.Center, lines...)
	style := cardStyle
	if m.fullscreen {
		style = fullscreenCardStyle
	}
	// Crop to the main area so the indicator stays on the row hit testing expects.
	style = style.MaxHeight(mainHeight).MaxWidth(innerWidth)
	body := lipgloss.Place(innerWidth, mainHeight, lipgloss.Center, lipgloss.Center, style.Render(card))

	if !l.controls {
		return body
	}

	left := lipgloss.Place(controlWidth, mainHeight, lipgloss.Center, lipgloss.Center, controlStyle.Render("‹"))
	right := lipgloss.Place(controlWidth, mainHeight, lipgloss.Center, lipgloss.Center, controlStyle.Render("›"))
	return lipgloss.JoinHorizontal(lipgloss.Top, left, body, right)
}

func (m Controller) renderIndicator(l layout) string {
	if !l.controls {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", l.segments[0].from))
	for i := range l.segments {
		if i > 0 {
			b.WriteString(strings.Repeat(" ", indicatorSpacing-1))
		}
		if i == m.carousel.Index() {
			b.WriteString(activeSegmentStyle.Render("●"))
		} else {
			b.WriteString(dimStyle.Render("○"))
		}
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}
