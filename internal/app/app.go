// Package app is the interactive shell: a page for creating items and the gallery page.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/audiolibrelab/voicecards/internal/audio"
	"github.com/audiolibrelab/voicecards/internal/gallery"
	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/play"
	"github.com/audiolibrelab/voicecards/internal/report"
	"github.com/audiolibrelab/voicecards/internal/service"
)

// headerHeight is the number of rows above the page body: the tab bar and the notice banner.
const headerHeight = 2

const levelBarWidth = 20

// Page identifies a page of the shell.
type Page int

const (
	PageCreate Page = iota
	PageGallery
)

// Backend is what the shell needs from the service.
type Backend interface {
	StartRecording(ctx context.Context) error
	StopRecording() (string, error)
	DiscardRecording() error
	CloseRecording() error
	RecordingSnapshot() audio.Snapshot
	PreviewRecording() <-chan play.Result
	AddItem(n service.NewItem) (media.MediaItem, error)
	ListItems() ([]media.MediaItem, error)
}

// Options configures the shell.
type Options struct {
	Backend   Backend
	Player    gallery.Player
	Presenter gallery.Presenter
	Sink      report.Sink
	Notices   <-chan report.Notice
	StartPage Page
}

// TickMsg carries a recorder snapshot taken on an elapsed-time tick.
type TickMsg audio.Snapshot

type levelMsg struct{}

type recordStartedMsg struct{ err error }

type recordStoppedMsg struct {
	ref string
	err error
}

type itemSavedMsg struct {
	item media.MediaItem
	err  error
}

type itemsLoadedMsg struct {
	items []media.MediaItem
	err   error
}

type previewDoneMsg struct{ res play.Result }

type noticeMsg struct {
	notice report.Notice
	ok     bool
}

// Model is the shell's Bubble Tea model.
type Model struct {
	backend Backend
	player  gallery.Player
	notices <-chan report.Notice
	keys    keyMap
	help    help.Model

	page    Page
	gallery gallery.Controller

	label      textinput.Model
	image      textinput.Model
	focus      int
	snapshot   audio.Snapshot
	status     string
	previewing bool
	busy       bool
	// starting is set while a StartRecording call is in flight; abandonStart
	// marks that the page was left before it returned.
	starting     bool
	abandonStart bool

	banner        string
	width, height int
}

// New creates the shell model.
func New(opts Options) Model {
	label := textinput.New()
	label.Placeholder = "What is it called?"
	label.Prompt = ""
	label.CharLimit = 80
	label.Focus()

	image := textinput.New()
	image.Placeholder = "path to an image file (optional)"
	image.Prompt = ""

	m := Model{
		backend: opts.Backend,
		player:  opts.Player,
		notices: opts.Notices,
		keys:    defaultKeys,
		help:    help.New(),
		gallery: gallery.New(nil, opts.Player, opts.Presenter, opts.Sink),
		label:   label,
		image:   image,
	}
	m.snapshot = m.backend.RecordingSnapshot()

	if opts.StartPage == PageGallery {
		m.page = PageGallery
		m.gallery = m.gallery.Mount()
		m.label.Blur()
	}
	return m
}

// Page returns the visible page.
func (m Model) Page() Page { return m.page }

// Gallery returns the gallery controller.
func (m Model) Gallery() gallery.Controller { return m.gallery }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadItems(), waitForNotice(m.notices))
}

func (m Model) loadItems() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		items, err := b.ListItems()
		return itemsLoadedMsg{items: items, err: err}
	}
}

func waitForNotice(notices <-chan report.Notice) tea.Cmd {
	if notices == nil {
		return nil
	}
	return func() tea.Msg {
		n, ok := <-notices
		return noticeMsg{notice: n, ok: ok}
	}
}

func levelTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg { return levelMsg{} })
}

func waitForPreview(results <-chan play.Result) tea.Cmd {
	return func() tea.Msg { return previewDoneMsg{res: <-results} }
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.label.Width = max(msg.Width-12, 10)
		m.image.Width = max(msg.Width-12, 10)
		m.gallery, cmd = m.gallery.Update(tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-headerHeight, 0)})
		return m, cmd

	case noticeMsg:
		if !msg.ok {
			return m, nil
		}
		m.banner = msg.notice.Message
		return m, waitForNotice(m.notices)

	case TickMsg:
		m.snapshot = audio.Snapshot(msg)
		return m, nil

	case levelMsg:
		m.snapshot = m.backend.RecordingSnapshot()
		if m.snapshot.Status == audio.StatusRecording {
			return m, levelTick()
		}
		return m, nil

	case recordStartedMsg:
		m.busy = false
		m.starting = false
		abandon := m.abandonStart || m.page != PageCreate
		m.abandonStart = false
		if msg.err != nil {
			m.snapshot = m.backend.RecordingSnapshot()
			m.status = "Could not start recording"
			return m, nil
		}
		if abandon {
			_ = m.backend.CloseRecording()
			m.snapshot = m.backend.RecordingSnapshot()
			m.status = "Recording abandoned"
			return m, nil
		}
		m.snapshot = m.backend.RecordingSnapshot()
		m.status = ""
		return m, levelTick()

	case recordStoppedMsg:
		m.busy = false
		m.snapshot = m.backend.RecordingSnapshot()
		if msg.err != nil {
			m.status = "Recording could not be saved"
			return m, nil
		}
		m.status = "Recording ready"
		return m, nil

	case itemSavedMsg:
		m.snapshot = m.backend.RecordingSnapshot()
		if msg.err != nil {
			if errors.Is(msg.err, media.ErrInvalidItem) {
				m.status = "A label and an image or a recording are required"
			} else {
				m.status = "Saving failed"
			}
			return m, nil
		}
		m.label.Reset()
		m.image.Reset()
		m.status = fmt.Sprintf("Saved %q", msg.item.Label)
		return m, m.loadItems()

	case itemsLoadedMsg:
		if msg.err != nil {
			m.status = "Could not load items"
			return m, nil
		}
		m.gallery = m.gallery.SetItems(msg.items)
		return m, nil

	case previewDoneMsg:
		m.player.Complete(msg.res)
		if !msg.res.Silenced {
			m.previewing = false
		}
		return m, nil

	case gallery.PlaybackDoneMsg, gallery.FullscreenMsg:
		m.gallery, cmd = m.gallery.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		if m.page != PageGallery || msg.Y < headerHeight {
			return m, nil
		}
		msg.Y -= headerHeight
		m.gallery, cmd = m.gallery.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.page == PageCreate {
		return m.updateInputs(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.SwitchPage):
		return m.switchPage()
	}

	if m.page == PageGallery {
		if key.Matches(msg, m.keys.QuitLetter) {
			return m.quit()
		}
		var cmd tea.Cmd
		m.gallery, cmd = m.gallery.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Record):
		return m.toggleRecording()
	case key.Matches(msg, m.keys.Discard):
		return m.discard()
	case key.Matches(msg, m.keys.Preview):
		return m.togglePreview()
	case key.Matches(msg, m.keys.Save):
		return m.save()
	case key.Matches(msg, m.keys.NextField), key.Matches(msg, m.keys.PrevField):
		return m.cycleFocus()
	}
	return m.updateInputs(msg)
}

func (m Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var labelCmd, imageCmd tea.Cmd
	m.label, labelCmd = m.label.Update(msg)
	m.image, imageCmd = m.image.Update(msg)
	return m, tea.Batch(labelCmd, imageCmd)
}

func (m Model) cycleFocus() (tea.Model, tea.Cmd) {
	m.focus = (m.focus + 1) % 2
	if m.focus == 0 {
		m.image.Blur()
		return m, m.label.Focus()
	}
	m.label.Blur()
	return m, m.image.Focus()
}

func (m Model) toggleRecording() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	b := m.backend

	switch b.RecordingSnapshot().Status {
	case audio.StatusRecording:
		m.busy = true
		m.status = "Saving recording…"
		return m, func() tea.Msg {
			ref, err := b.StopRecording()
			return recordStoppedMsg{ref: ref, err: err}
		}
	case audio.StatusStopping:
		return m, nil
	}

	m.stopPreview()
	m.busy = true
	m.starting = true
	m.status = "Opening microphone…"
	return m, func() tea.Msg {
		return recordStartedMsg{err: b.StartRecording(context.Background())}
	}
}

func (m Model) discard() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	m.stopPreview()
	if err := m.backend.DiscardRecording(); err != nil {
		m.status = "Stop the recording before discarding it"
		return m, nil
	}
	m.snapshot = m.backend.RecordingSnapshot()
	m.status = "Recording discarded"
	return m, nil
}

func (m Model) togglePreview() (tea.Model, tea.Cmd) {
	if m.previewing {
		m.stopPreview()
		return m, nil
	}
	results := m.backend.PreviewRecording()
	if results == nil {
		m.status = "Nothing to preview"
		return m, nil
	}
	m.previewing = true
	m.status = ""
	return m, waitForPreview(results)
}

func (m *Model) stopPreview() {
	if m.previewing {
		m.player.Stop()
		m.previewing = false
	}
}

func (m Model) save() (tea.Model, tea.Cmd) {
	if m.busy || m.snapshot.Status == audio.StatusRecording {
		m.status = "Stop the recording before saving"
		return m, nil
	}
	m.stopPreview()

	b := m.backend
	n := service.NewItem{
		Label:        m.label.Value(),
		ImagePath:    strings.TrimSpace(m.image.Value()),
		UseRecording: true,
	}
	return m, func() tea.Msg {
		item, err := b.AddItem(n)
		return itemSavedMsg{item: item, err: err}
	}
}

func (m Model) switchPage() (tea.Model, tea.Cmd) {
	if m.page == PageGallery {
		var cmd tea.Cmd
		m.gallery, cmd = m.gallery.Unmount()
		m.page = PageCreate
		m.focus = 0
		return m, tea.Batch(cmd, m.label.Focus())
	}

	m.leaveCreate()
	m.page = PageGallery
	m.gallery = m.gallery.Mount()
	return m, m.loadItems()
}

// leaveCreate abandons a capture in progress, including one still being started.
// A finished recording stays available.
func (m *Model) leaveCreate() {
	m.stopPreview()
	m.label.Blur()
	m.image.Blur()
	if m.starting {
		m.abandonStart = true
	}
	if m.backend.RecordingSnapshot().Status == audio.StatusRecording {
		_ = m.backend.CloseRecording()
		m.snapshot = m.backend.RecordingSnapshot()
		m.status = "Recording abandoned"
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.page == PageCreate {
		m.leaveCreate()
	} else {
		m.gallery, cmd = m.gallery.Unmount()
	}
	if cmd == nil {
		return m, tea.Quit
	}
	return m, tea.Sequence(cmd, tea.Quit)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	if m.banner != "" {
		b.WriteString(bannerStyle.Render("! " + m.banner))
	}
	b.WriteString("\n")

	if m.page == PageGallery {
		b.WriteString(m.gallery.View())
	} else {
		b.WriteString(m.renderCreate())
	}
	return b.String()
}

func (m Model) renderTabs() string {
	create, gal := tabStyle, tabStyle
	if m.page == PageCreate {
		create = activeTabStyle
	} else {
		gal = activeTabStyle
	}
	return create.Render("Create") + gal.Render(fmt.Sprintf("Gallery (%d)", m.gallery.Len()))
}

func (m Model) renderCreate() string {
	lines := []string{
		"",
		labelStyle.Render("Label") + m.label.View(),
		labelStyle.Render("Image") + m.image.View(),
		"",
		m.renderRecorder(),
		statusStyle.Render(m.status),
		"",
		m.help.View(createHelp{m.keys}),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRecorder() string {
	s := m.snapshot
	switch s.Status {
	case audio.StatusRecording:
		return recordingStyle.Render("● REC "+s.Elapsed()) + "  " + levelBar(s.Level)
	case audio.StatusStopping:
		return statusStyle.Render("Saving recording…")
	case audio.StatusFinished:
		line := finishedStyle.Render("✓ Recording " + s.Elapsed())
		if m.previewing {
			line += "  ▶ previewing"
		}
		return line
	case audio.StatusFailed:
		return bannerStyle.Render("✗ Recording failed, ctrl+x to reset")
	default:
		return statusStyle.Render("○ No recording")
	}
}

func levelBar(level int) string {
	filled := level * levelBarWidth / 100
	filled = min(max(filled, 0), levelBarWidth)
	return levelStyle.Render(strings.Repeat("█", filled)) + statusStyle.Render(strings.Repeat("░", levelBarWidth-filled))
}

// Run shows the shell on the terminal until the user quits or ctx is cancelled.
func Run(ctx context.Context, svc *service.Service, start Page) error {
	m := New(Options{
		Backend:   svc,
		Player:    svc.Engine(),
		Presenter: gallery.NewTerminalPresenter(os.Stdout),
		Sink:      svc.Reporter(),
		Notices:   svc.Reporter().Notices(),
		StartPage: start,
	})

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithMouseCellMotion())

	// Sends run on their own goroutine so a tick never waits on the event loop
	// while the event loop waits on the recorder.
	svc.SetTickObserver(func(s audio.Snapshot) { go p.Send(TickMsg(s)) })
	defer svc.SetTickObserver(nil)

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("interactive session failed: %w", err)
	}
	return nil
}
