// Package play plays item audio, falling back to speech synthesis of the label.
package play

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/report"
)

// State reports whether something is audible and for which item.
type State struct {
	IsPlaying    bool   `json:"is_playing"`
	ActiveItemID string `json:"active_item_id,omitempty"`
}

// Result is the single terminal notification of a playback.
type Result struct {
	Seq    uint64
	ItemID string
	Err    error
	// Silenced is set when the playback was cut short by a newer one or by Stop.
	Silenced bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStartHook registers fn to run whenever a playback starts.
func WithStartHook(fn func(media.MediaItem)) EngineOption {
	return func(e *Engine) { e.onStart = fn }
}

// Engine plays at most one item at a time.
type Engine struct {
	player  AudioPlayer
	speech  Synthesizer
	sink    report.Sink
	onStart func(media.MediaItem)

	mu     sync.Mutex
	seq    uint64
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine. Failures are sent to sink.
func NewEngine(player AudioPlayer, speech Synthesizer, sink report.Sink, opts ...EngineOption) *Engine {
	if sink == nil {
		sink = report.Discard
	}
	e := &Engine{player: player, speech: speech, sink: sink}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current playback state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Play starts playing the item's audio, or speaks its label when it has none. Any current
// playback is silenced first. The returned channel yields exactly one Result; it is nil
// when the item has nothing to play.
func (e *Engine) Play(item media.MediaItem) <-chan Result {
	var run func(ctx context.Context) error
	switch {
	case item.HasAudio() && e.player != nil:
		ref := item.AudioRef
		run = func(ctx context.Context) error { return e.player.Play(ctx, ref) }
	case !item.HasAudio() && strings.TrimSpace(item.Label) != "" && e.speech != nil:
		label := item.Label
		run = func(ctx context.Context) error { return e.speech.Speak(ctx, label) }
	default:
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.silenceLocked()

	e.seq++
	seq := e.seq
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.state = State{IsPlaying: true, ActiveItemID: item.ID}

	if e.onStart != nil {
		e.onStart(item)
	}

	results := make(chan Result, 1)
	go func() {
		defer close(done)
		err := run(ctx)
		res := Result{Seq: seq, ItemID: item.ID}
		if ctx.Err() != nil {
			res.Silenced = true
		} else {
			res.Err = err
		}
		results <- res
		close(results)
	}()

	slog.Debug("Playback requested", "item_id", item.ID, "speech", !item.HasAudio())
	return results
}

// silenceLocked cancels the current playback and waits for it to stop.
func (e *Engine) silenceLocked() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
}

// Complete applies a playback result. Results of superseded playbacks do not change
// the state. Failures are reported, never returned.
func (e *Engine) Complete(res Result) State {
	if res.Err != nil && !res.Silenced {
		e.sink.Report(report.KindPlaybackFailure, fmt.Errorf("%w: %v", ErrPlaybackFailure, res.Err), "item_id", res.ItemID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if res.Seq != e.seq || !e.state.IsPlaying {
		return e.state
	}

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		e.done = nil
	}
	e.state = State{}
	return e.state
}

// Stop silences any playback.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.silenceLocked()
	e.state = State{}
}

// PlayAndWait plays the item and blocks until it finishes or ctx is cancelled.
func (e *Engine) PlayAndWait(ctx context.Context, item media.MediaItem) error {
	results := e.Play(item)
	if results == nil {
		return nil
	}

	select {
	case res := <-results:
		e.Complete(res)
		return res.Err
	case <-ctx.Done():
		e.Stop()
		return ctx.Err()
	}
}
