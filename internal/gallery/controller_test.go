package gallery

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/play"
	"github.com/audiolibrelab/voicecards/internal/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeOutput struct {
	mu     sync.Mutex
	audio  []string
	speech []string
	err    error
}

func (o *fakeOutput) Play(_ context.Context, ref string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, ref)
	return o.err
}

func (o *fakeOutput) Speak(_ context.Context, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speech = append(o.speech, text)
	return o.err
}

type fakePresenter struct {
	enterErr error
	enters   int
	exits    int
}

func (p *fakePresenter) Enter() error {
	p.enters++
	return p.enterErr
}

func (p *fakePresenter) Exit() error {
	p.exits++
	return nil
}

type fakeSink struct {
	kinds []report.Kind
}

func (s *fakeSink) Report(kind report.Kind, _ error, _ ...any) {
	s.kinds = append(s.kinds, kind)
}

type fixture struct {
	out       *fakeOutput
	presenter *fakePresenter
	sink      *fakeSink
	engine    *play.Engine
	ctrl      Controller
}

func newFixture(items []media.MediaItem) *fixture {
	f := &fixture{out: &fakeOutput{}, presenter: &fakePresenter{}, sink: &fakeSink{}}
	f.engine = play.NewEngine(f.out, f.out, f.sink)
	f.ctrl = New(items, f.engine, f.presenter, f.sink).Mount()
	f.ctrl, _ = f.ctrl.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return f
}

// send delivers msg and runs the resulting command chain to completion, the way
// the Bubble Tea runtime would.
func (f *fixture) send(msg tea.Msg) {
	var cmd tea.Cmd
	f.ctrl, cmd = f.ctrl.Update(msg)
	f.run(cmd)
}

func (f *fixture) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	switch msg := msg.(type) {
	case PlaybackDoneMsg, FullscreenMsg:
		f.send(msg)
	case tea.BatchMsg:
		for _, c := range msg {
			f.run(c)
		}
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func click(x, y int) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft}
}

var (
	itemA = media.MediaItem{ID: "a", Label: "Dog", AudioRef: "audio/a.wav", ImageRef: "image/a.png"}
	itemB = media.MediaItem{ID: "b", Label: "Cat", ImageRef: "image/b.png"}
)

func TestController_InitialState(t *testing.T) {
	c := New([]media.MediaItem{itemA, itemB}, nil, nil, nil)
	assert.Equal(t, 0, c.Index())
	assert.False(t, c.Playing())
	assert.False(t, c.Fullscreen())
	assert.False(t, c.Mounted())
}

func TestController_NavigateAndSpeakScenario(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})

	f.ctrl, _ = f.ctrl.Update(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, f.ctrl.Index())

	var cmd tea.Cmd
	f.ctrl, cmd = f.ctrl.Update(tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	assert.True(t, f.ctrl.Playing())

	f.run(cmd)
	assert.False(t, f.ctrl.Playing())
	assert.Equal(t, []string{"Cat"}, f.out.speech)
	assert.Empty(t, f.out.audio)

	f.send(tea.KeyMsg{Type: tea.KeyLeft})
	assert.Equal(t, 0, f.ctrl.Index())
}

func TestController_PlaysAudioWhenPresent(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})

	f.send(tea.KeyMsg{Type: tea.KeySpace})
	assert.Equal(t, []string{"audio/a.wav"}, f.out.audio)
	assert.Empty(t, f.out.speech)
	assert.False(t, f.ctrl.Playing())
}

func TestController_PlaybackFailureIsReported(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA})
	f.out.err = errors.New("corrupt file")

	f.send(tea.KeyMsg{Type: tea.KeySpace})
	assert.False(t, f.ctrl.Playing())
	assert.Equal(t, []report.Kind{report.KindPlaybackFailure}, f.sink.kinds)
}

func TestController_Keys(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want int
	}{
		{"right", []tea.KeyMsg{{Type: tea.KeyRight}}, 1},
		{"l", []tea.KeyMsg{keyRunes("l")}, 1},
		{"left wraps", []tea.KeyMsg{{Type: tea.KeyLeft}}, 2},
		{"h wraps", []tea.KeyMsg{keyRunes("h")}, 2},
		{"digit", []tea.KeyMsg{keyRunes("3")}, 2},
		{"digit out of range", []tea.KeyMsg{keyRunes("9")}, 0},
		{"unknown keys ignored", []tea.KeyMsg{keyRunes("x"), {Type: tea.KeyTab}, {Type: tea.KeyEnter}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(makeItems(3))
			for _, k := range tt.keys {
				f.send(k)
			}
			assert.Equal(t, tt.want, f.ctrl.Index())
			assert.False(t, f.ctrl.Playing())
		})
	}
}

func TestController_UnmountedIgnoresInput(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})
	f.ctrl, _ = f.ctrl.Unmount()

	f.send(tea.KeyMsg{Type: tea.KeyRight})
	f.send(tea.KeyMsg{Type: tea.KeySpace})
	f.send(click(40, 10))

	assert.Equal(t, 0, f.ctrl.Index())
	assert.Empty(t, f.out.audio)
	assert.Empty(t, f.out.speech)

	f.ctrl = f.ctrl.Mount()
	f.send(tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, 1, f.ctrl.Index())
}

func TestController_MouseControlsDoNotPlay(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})

	f.send(click(1, 10))
	assert.Equal(t, 1, f.ctrl.Index())

	f.send(click(79, 10))
	assert.Equal(t, 0, f.ctrl.Index())

	assert.Empty(t, f.out.audio)
	assert.Empty(t, f.out.speech)
}

func TestController_MouseIndicatorSelects(t *testing.T) {
	f := newFixture(makeItems(2))
	l := computeLayout(80, 24, 2)

	f.send(click(l.segments[1].from, l.indicatorRow))
	assert.Equal(t, 1, f.ctrl.Index())
	assert.Empty(t, f.out.speech, "indicator selection must not play")
}

func TestController_MouseMainAreaPlays(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})

	f.send(click(40, 10))
	assert.Equal(t, []string{"audio/a.wav"}, f.out.audio)

	l := computeLayout(80, 24, 2)
	f.send(click(l.playButton.from, 0))
	assert.Len(t, f.out.audio, 2)

	// Presses and other buttons are ignored.
	f.send(tea.MouseMsg{X: 40, Y: 10, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	f.send(tea.MouseMsg{X: 40, Y: 10, Action: tea.MouseActionRelease, Button: tea.MouseButtonRight})
	assert.Len(t, f.out.audio, 2)
}

func TestController_SingleItemHasNoControls(t *testing.T) {
	f := newFixture([]media.MediaItem{itemB})

	f.send(click(1, 10))
	assert.Equal(t, 0, f.ctrl.Index())
	assert.Equal(t, []string{"Cat"}, f.out.speech, "without controls the left edge is part of the main area")
}

func TestController_Fullscreen(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})

	f.send(keyRunes("f"))
	assert.True(t, f.ctrl.Fullscreen())
	assert.Equal(t, 1, f.presenter.enters)

	// Navigation and fullscreen are independent.
	f.send(tea.KeyMsg{Type: tea.KeyRight})
	assert.True(t, f.ctrl.Fullscreen())
	assert.Equal(t, 1, f.ctrl.Index())

	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, f.ctrl.Fullscreen())
	assert.Equal(t, 1, f.presenter.exits)

	// Escape while windowed does nothing.
	f.send(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, 1, f.presenter.exits)

	l := computeLayout(80, 24, 2)
	f.send(click(l.fullscreenButton.from, 0))
	assert.True(t, f.ctrl.Fullscreen())
}

func TestController_FullscreenFailureStaysWindowed(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA})
	f.presenter.enterErr = ErrFullscreenUnavailable

	f.send(keyRunes("f"))
	assert.False(t, f.ctrl.Fullscreen())
	assert.Equal(t, []report.Kind{report.KindFullscreenUnavailable}, f.sink.kinds)
}

func TestController_UnmountLeavesFullscreenAndSilences(t *testing.T) {
	out := &blockingSpeech{started: make(chan struct{}, 1)}
	engine := play.NewEngine(nil, out, nil)
	presenter := &fakePresenter{}
	ctrl := New([]media.MediaItem{itemB}, engine, presenter, nil).Mount()

	ctrl, cmd := ctrl.Update(keyRunes("f"))
	ctrl, _ = ctrl.Update(cmd())
	require.True(t, ctrl.Fullscreen())

	ctrl, cmd = ctrl.Update(tea.KeyMsg{Type: tea.KeySpace})
	require.NotNil(t, cmd)
	<-out.started
	require.True(t, ctrl.Playing())

	ctrl, exitCmd := ctrl.Unmount()
	assert.False(t, ctrl.Mounted())
	assert.False(t, ctrl.Playing())
	assert.False(t, ctrl.Fullscreen())
	assert.False(t, engine.State().IsPlaying)
	require.NotNil(t, exitCmd)

	// The pending playback still yields its single, silenced result.
	done := cmd().(PlaybackDoneMsg)
	assert.True(t, done.Result.Silenced)
}

type blockingSpeech struct {
	started chan struct{}
}

func (b *blockingSpeech) Speak(ctx context.Context, _ string) error {
	b.started <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestController_SetItemsRevalidatesBeforeRender(t *testing.T) {
	f := newFixture(makeItems(4))
	f.send(keyRunes("4"))
	require.Equal(t, 3, f.ctrl.Index())

	f.ctrl = f.ctrl.SetItems(makeItems(2))
	assert.Equal(t, 0, f.ctrl.Index())
	assert.Contains(t, f.ctrl.View(), "Item 0")
}

func TestController_EmptyGallery(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, EmptyText, f.ctrl.View())

	f.send(tea.KeyMsg{Type: tea.KeySpace})
	f.send(click(40, 10))
	assert.False(t, f.ctrl.Playing())
	assert.Empty(t, f.out.speech)
}

func TestController_View(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB, {ID: "c", ImageRef: "image/c.png"}})

	view := f.ctrl.View()
	assert.Contains(t, view, "Dog")
	assert.Contains(t, view, playButton)
	assert.Contains(t, view, fullscreenButton)
	assert.Contains(t, view, "●")
	assert.Contains(t, view, "‹")

	f.send(keyRunes("3"))
	assert.Contains(t, f.ctrl.View(), "Untitled")
}

func TestController_ShortTerminalKeepsIndicatorRow(t *testing.T) {
	f := newFixture([]media.MediaItem{itemA, itemB})
	f.ctrl, _ = f.ctrl.Update(tea.WindowSizeMsg{Width: 60, Height: 10})
	f.send(keyRunes("f"))
	require.True(t, f.ctrl.Fullscreen())

	l := computeLayout(60, 10, 2)
	rows := strings.Split(f.ctrl.View(), "\n")
	require.Greater(t, len(rows), l.indicatorRow)
	assert.Contains(t, rows[l.indicatorRow], "●")

	f.send(click(l.segments[1].from, l.indicatorRow))
	assert.Equal(t, 1, f.ctrl.Index())
}

func TestLayout_Hit(t *testing.T) {
	l := computeLayout(80, 24, 3)

	target, _ := l.hit(0, 5)
	assert.Equal(t, targetPrevious, target)
	target, _ = l.hit(79, 5)
	assert.Equal(t, targetNext, target)
	target, _ = l.hit(40, 5)
	assert.Equal(t, targetMain, target)
	target, _ = l.hit(5, 0)
	assert.Equal(t, targetNone, target)
	target, _ = l.hit(40, 23)
	assert.Equal(t, targetNone, target)

	target, index := l.hit(l.segments[2].from, l.indicatorRow)
	assert.Equal(t, targetSegment, target)
	assert.Equal(t, 2, index)

	single := computeLayout(80, 24, 1)
	target, _ = single.hit(0, 5)
	assert.Equal(t, targetMain, target)
	assert.Empty(t, single.segments)
}
