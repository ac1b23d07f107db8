package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/audiolibrelab/voicecards/internal/audio"
	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/play"
	"github.com/audiolibrelab/voicecards/internal/report"
	"github.com/audiolibrelab/voicecards/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	mu       sync.Mutex
	snap     audio.Snapshot
	items    []media.MediaItem
	startErr error
	closed   int
	engine   *play.Engine
}

func (b *fakeBackend) StartRecording(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.startErr != nil {
		return b.startErr
	}
	b.snap = audio.Snapshot{Status: audio.StatusRecording}
	return nil
}

func (b *fakeBackend) StopRecording() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.Status != audio.StatusRecording {
		return "", audio.ErrInvalidState
	}
	b.snap = audio.Snapshot{Status: audio.StatusFinished, AssetRef: "audio/rec.wav", ElapsedSeconds: b.snap.ElapsedSeconds}
	return b.snap.AssetRef, nil
}

func (b *fakeBackend) DiscardRecording() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap.Status == audio.StatusRecording {
		return audio.ErrInvalidState
	}
	b.snap = audio.Snapshot{Status: audio.StatusIdle}
	return nil
}

func (b *fakeBackend) CloseRecording() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	b.snap = audio.Snapshot{Status: audio.StatusIdle}
	return nil
}

func (b *fakeBackend) RecordingSnapshot() audio.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

func (b *fakeBackend) PreviewRecording() <-chan play.Result {
	snap := b.RecordingSnapshot()
	if snap.Status != audio.StatusFinished {
		return nil
	}
	return b.engine.Play(media.MediaItem{ID: "preview", AudioRef: snap.AssetRef})
}

func (b *fakeBackend) AddItem(n service.NewItem) (media.MediaItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	item := media.MediaItem{ID: fmt.Sprintf("id-%d", len(b.items)), Label: n.Label, ImageRef: n.ImagePath}
	if n.UseRecording && b.snap.Status == audio.StatusFinished {
		item.AudioRef = b.snap.AssetRef
	}
	if err := item.Validate(); err != nil {
		return media.MediaItem{}, err
	}
	if item.AudioRef != "" {
		b.snap = audio.Snapshot{Status: audio.StatusIdle}
	}
	b.items = append(b.items, item)
	return item, nil
}

func (b *fakeBackend) ListItems() ([]media.MediaItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]media.MediaItem(nil), b.items...), nil
}

type fakeOutput struct {
	mu     sync.Mutex
	audio  []string
	speech []string
}

func (o *fakeOutput) Play(_ context.Context, ref string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, ref)
	return nil
}

func (o *fakeOutput) Speak(_ context.Context, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speech = append(o.speech, text)
	return nil
}

type nopPresenter struct{}

func (nopPresenter) Enter() error { return nil }
func (nopPresenter) Exit() error  { return nil }

type fixture struct {
	backend *fakeBackend
	out     *fakeOutput
	notices chan report.Notice
	model   Model
}

func newFixture(t *testing.T, start Page, items ...media.MediaItem) *fixture {
	t.Helper()
	out := &fakeOutput{}
	engine := play.NewEngine(out, out, report.Discard)
	f := &fixture{
		backend: &fakeBackend{items: items, engine: engine},
		out:     out,
		notices: make(chan report.Notice, 4),
	}
	f.model = New(Options{
		Backend:   f.backend,
		Player:    engine,
		Presenter: nopPresenter{},
		Sink:      report.Discard,
		Notices:   f.notices,
		StartPage: start,
	})
	f.send(tea.WindowSizeMsg{Width: 80, Height: 26})
	f.send(f.model.loadItems()())
	t.Cleanup(engine.Stop)
	return f
}

// send applies msg and returns the resulting command.
func (f *fixture) send(msg tea.Msg) tea.Cmd {
	next, cmd := f.model.Update(msg)
	f.model = next.(Model)
	return cmd
}

// run applies msg and feeds the message its command produces back into the model.
func (f *fixture) run(msg tea.Msg) {
	if cmd := f.send(msg); cmd != nil {
		if out := cmd(); out != nil {
			f.send(out)
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	case "ctrl+x":
		return tea.KeyMsg{Type: tea.KeyCtrlX}
	case "ctrl+p":
		return tea.KeyMsg{Type: tea.KeyCtrlP}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestSwitchPage_MountsGallery(t *testing.T) {
	f := newFixture(t, PageCreate)
	assert.Equal(t, PageCreate, f.model.Page())
	assert.False(t, f.model.Gallery().Mounted())

	f.run(keyMsg("tab"))
	assert.Equal(t, PageGallery, f.model.Page())
	assert.True(t, f.model.Gallery().Mounted())

	f.send(keyMsg("tab"))
	assert.Equal(t, PageCreate, f.model.Page())
	assert.False(t, f.model.Gallery().Mounted())
}

func TestRecordStopAndSave(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+r"))
	assert.Equal(t, audio.StatusRecording, f.model.snapshot.Status)

	f.send(TickMsg(audio.Snapshot{Status: audio.StatusRecording, ElapsedSeconds: 3}))
	assert.Contains(t, f.model.View(), "00:03")

	f.run(keyMsg("ctrl+r"))
	assert.Equal(t, audio.StatusFinished, f.model.snapshot.Status)
	assert.Contains(t, f.model.View(), "Recording ready")

	f.send(keyMsg("Cat"))
	f.run(keyMsg("enter"))

	require.Len(t, f.backend.items, 1)
	assert.Equal(t, "Cat", f.backend.items[0].Label)
	assert.Equal(t, "audio/rec.wav", f.backend.items[0].AudioRef)
	assert.Empty(t, f.model.label.Value(), "the form resets after saving")

	f.send(f.model.loadItems()())
	assert.Equal(t, 1, f.model.Gallery().Len())
}

func TestSave_RequiresLabelAndMedia(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.send(keyMsg("Cat"))
	f.run(keyMsg("enter"))

	assert.Empty(t, f.backend.items)
	assert.Contains(t, f.model.View(), "A label and an image or a recording are required")
	assert.Equal(t, "Cat", f.model.label.Value(), "input is kept on validation errors")
}

func TestSave_WithImagePath(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.send(keyMsg("Dog"))
	f.send(keyMsg("down"))
	f.send(keyMsg("/tmp/dog.png"))
	f.run(keyMsg("enter"))

	require.Len(t, f.backend.items, 1)
	assert.Equal(t, "/tmp/dog.png", f.backend.items[0].ImageRef)
}

func TestSave_BlockedWhileRecording(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+r"))
	f.send(keyMsg("Cat"))
	cmd := f.send(keyMsg("enter"))

	assert.Nil(t, cmd)
	assert.Empty(t, f.backend.items)
}

func TestStartFailure_StaysIdle(t *testing.T) {
	f := newFixture(t, PageCreate)
	f.backend.startErr = audio.ErrDeviceUnavailable

	f.run(keyMsg("ctrl+r"))
	assert.Equal(t, audio.StatusIdle, f.model.snapshot.Status)
	assert.Contains(t, f.model.View(), "Could not start recording")
}

func TestLeavingCreatePage_AbandonsRecording(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+r"))
	f.run(keyMsg("tab"))

	assert.Equal(t, 1, f.backend.closed)
	assert.Equal(t, audio.StatusIdle, f.backend.RecordingSnapshot().Status)
}

func TestLeavingCreatePage_WhileStartPending(t *testing.T) {
	f := newFixture(t, PageCreate)

	start := f.send(keyMsg("ctrl+r"))
	require.NotNil(t, start)
	f.run(keyMsg("tab"))
	assert.Equal(t, PageGallery, f.model.Page())
	assert.Equal(t, 0, f.backend.closed)

	f.send(start())
	assert.Equal(t, 1, f.backend.closed)
	assert.Equal(t, audio.StatusIdle, f.backend.RecordingSnapshot().Status)
	assert.Equal(t, audio.StatusIdle, f.model.snapshot.Status)
}

func TestReturningToCreatePage_StillAbandonsPendingStart(t *testing.T) {
	f := newFixture(t, PageCreate)

	start := f.send(keyMsg("ctrl+r"))
	require.NotNil(t, start)
	f.run(keyMsg("tab"))
	f.send(keyMsg("tab"))
	assert.Equal(t, PageCreate, f.model.Page())

	f.send(start())
	assert.Equal(t, 1, f.backend.closed)
	assert.Equal(t, audio.StatusIdle, f.backend.RecordingSnapshot().Status)
	assert.Contains(t, f.model.View(), "Recording abandoned")

	f.run(keyMsg("ctrl+r"))
	assert.Equal(t, audio.StatusRecording, f.model.snapshot.Status, "a later start is not abandoned")
}

func TestLeavingCreatePage_KeepsFinishedRecording(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+r"))
	f.run(keyMsg("ctrl+r"))
	f.run(keyMsg("tab"))

	assert.Equal(t, 0, f.backend.closed)
	assert.Equal(t, audio.StatusFinished, f.backend.RecordingSnapshot().Status)
}

func TestDiscardAndPreview(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+p"))
	assert.Contains(t, f.model.View(), "Nothing to preview")

	f.run(keyMsg("ctrl+r"))
	f.run(keyMsg("ctrl+r"))
	f.run(keyMsg("ctrl+p"))
	assert.False(t, f.model.previewing, "preview completes and clears")
	assert.Equal(t, []string{"audio/rec.wav"}, f.out.audio)

	f.run(keyMsg("ctrl+x"))
	assert.Equal(t, audio.StatusIdle, f.model.snapshot.Status)
	assert.Contains(t, f.model.View(), "Recording discarded")
}

func TestPreview_StaleResultKeepsIndicator(t *testing.T) {
	f := newFixture(t, PageCreate)
	f.model.previewing = true

	f.send(previewDoneMsg{res: play.Result{Seq: 1, ItemID: "preview", Silenced: true}})
	assert.True(t, f.model.previewing, "a silenced earlier preview does not clear the current one")

	f.send(previewDoneMsg{res: play.Result{Seq: 2, ItemID: "preview"}})
	assert.False(t, f.model.previewing)
}

func TestGalleryPage_KeysAndQuit(t *testing.T) {
	f := newFixture(t, PageGallery,
		media.MediaItem{ID: "a", Label: "Cat", AudioRef: "audio/cat.wav"},
		media.MediaItem{ID: "b", Label: "Dog", ImageRef: "image/dog.png"},
	)

	f.run(keyMsg("l"))
	assert.Equal(t, 1, f.model.Gallery().Index())

	f.run(keyMsg("space"))
	assert.Equal(t, []string{"Dog"}, f.out.speech)

	cmd := f.send(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.False(t, f.model.Gallery().Mounted())
}

func TestCreatePage_QTypesIntoLabel(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.send(keyMsg("q"))
	assert.Equal(t, "q", f.model.label.Value())
}

func TestMouse_OffsetByHeader(t *testing.T) {
	f := newFixture(t, PageGallery, media.MediaItem{ID: "a", Label: "Cat", AudioRef: "audio/cat.wav"})

	cmd := f.send(tea.MouseMsg{X: 40, Y: 0, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Nil(t, cmd, "clicks on the header are ignored")

	f.run(tea.MouseMsg{X: 40, Y: 12, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	assert.Equal(t, []string{"audio/cat.wav"}, f.out.audio)
}

func TestNotices(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.notices <- report.Notice{Kind: report.KindDeviceUnavailable, Message: "Microphone unavailable"}
	cmd := waitForNotice(f.notices)
	f.send(cmd())
	assert.Contains(t, f.model.View(), "Microphone unavailable")

	close(f.notices)
	assert.Nil(t, f.send(cmd()))
}

func TestQuit_FromCreateAbandonsRecording(t *testing.T) {
	f := newFixture(t, PageCreate)

	f.run(keyMsg("ctrl+r"))
	cmd := f.send(keyMsg("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, 1, f.backend.closed)
}

func TestLevelBar(t *testing.T) {
	for _, level := range []int{-5, 0, 50, 100, 150} {
		assert.NotPanics(t, func() { _ = levelBar(level) }, "level %d", level)
	}
}
