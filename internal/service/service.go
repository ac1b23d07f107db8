// Package service wires the item store, asset store, recorder, playback engine and
// reporter into the operations the CLI, the TUI and the HTTP server share.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/audiolibrelab/voicecards/internal/assets"
	"github.com/audiolibrelab/voicecards/internal/audio"
	"github.com/audiolibrelab/voicecards/internal/config"
	"github.com/audiolibrelab/voicecards/internal/media"
	"github.com/audiolibrelab/voicecards/internal/play"
	"github.com/audiolibrelab/voicecards/internal/report"
	"github.com/audiolibrelab/voicecards/internal/store"
)

// NewItem describes an item to create. AudioPath imports an existing recording;
// UseRecording takes the recorder's finished recording instead.
type NewItem struct {
	Label        string
	ImagePath    string
	AudioPath    string
	UseRecording bool
}

// Status is a point-in-time view of the service.
type Status struct {
	Recorder  audio.Snapshot `json:"recorder"`
	Playback  play.State     `json:"playback"`
	ItemCount int            `json:"item_count"`
	LastError string         `json:"last_error,omitempty"`
}

type options struct {
	device   audio.CaptureDevice
	player   play.AudioPlayer
	speech   play.Synthesizer
	clock    audio.Clock
	registry *prometheus.Registry
	sentry   string
	release  string
	trace    bool
}

// Option customizes New.
type Option func(*options)

// WithCaptureDevice replaces the malgo capture device.
func WithCaptureDevice(d audio.CaptureDevice) Option {
	return func(o *options) { o.device = d }
}

// WithPlayer replaces the configured audio player.
func WithPlayer(p play.AudioPlayer) Option {
	return func(o *options) { o.player = p }
}

// WithSynthesizer replaces the configured speech backend.
func WithSynthesizer(s play.Synthesizer) Option {
	return func(o *options) { o.speech = s }
}

// WithClock replaces the recorder's wall clock.
func WithClock(c audio.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRegistry registers metrics in r instead of a private registry.
func WithRegistry(r *prometheus.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithRelease tags reported failures with the build version.
func WithRelease(version string) Option {
	return func(o *options) { o.release = version }
}

// WithDeviceTrace enables malgo backend logging.
func WithDeviceTrace(enabled bool) Option {
	return func(o *options) { o.trace = enabled }
}

// Service is the voicecards application core.
type Service struct {
	cfg      *config.Config
	items    *store.Store
	assets   *assets.Store
	reporter *report.Reporter
	device   audio.CaptureDevice
	recorder *audio.Recorder
	engine   *play.Engine
	closers  []func() error

	onTick atomic.Pointer[func(audio.Snapshot)]

	lastError      string
	lastErrorMutex sync.RWMutex

	closeOnce sync.Once
}

// New opens the item store and asset directory and builds the audio stack from cfg.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	o := options{sentry: cfg.Report.SentryDSN}
	for _, opt := range opts {
		opt(&o)
	}

	items, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, err
	}

	assetStore, err := assets.New(cfg.AssetsPath())
	if err != nil {
		items.Close()
		return nil, err
	}

	reporter, err := report.New(report.Options{
		Registry:  o.registry,
		SentryDSN: o.sentry,
		Release:   o.release,
	})
	if err != nil {
		items.Close()
		return nil, err
	}

	s := &Service{
		cfg:      cfg,
		items:    items,
		assets:   assetStore,
		reporter: reporter,
	}

	device := o.device
	if device == nil {
		md := audio.NewMalgoDevice(cfg.Audio.SampleRate, cfg.Audio.Channels, cfg.Audio.Device)
		md.Trace = o.trace
		device = md
	}
	s.device = device
	s.recorder = audio.NewRecorder(audio.NewExclusive(device), assetStore, audio.Options{
		SampleRate:   cfg.Audio.SampleRate,
		Channels:     cfg.Audio.Channels,
		OpenAttempts: cfg.Audio.OpenAttempts,
		LevelWindow:  cfg.LevelWindow(),
		Clock:        o.clock,
		OnTick:       s.notifyTick,
	})

	player := o.player
	if player == nil {
		player = newPlayer(cfg.Audio.Player, assetStore)
	}

	speech := o.speech
	if speech == nil {
		speech = s.newSynthesizer(ctx, player)
	}

	s.engine = play.NewEngine(player, speech, reporter, play.WithStartHook(func(media.MediaItem) {
		reporter.PlaybackStarted()
	}))

	slog.Debug("Service ready", "data_dir", cfg.Storage.DataDir, "player", cfg.Audio.Player, "speech", cfg.Speech.Backend, "profile", cfg.Profile)
	return s, nil
}

func newPlayer(kind string, assetStore *assets.Store) play.AudioPlayer {
	switch kind {
	case "malgo":
		return play.NewMalgoPlayer(assetStore)
	case "command":
		return play.NewCommandPlayer(assetStore)
	default:
		return play.FallbackPlayer{
			Primary:   play.NewMalgoPlayer(assetStore),
			Secondary: play.NewCommandPlayer(assetStore),
		}
	}
}

func (s *Service) newSynthesizer(ctx context.Context, player play.AudioPlayer) play.Synthesizer {
	sc := s.cfg.Speech
	command := play.NewCommandSynthesizer(sc.Voice, sc.Language)

	useGoogle := sc.Backend == "google" || (sc.Backend == "auto" && sc.GoogleCredentials != "")
	if !useGoogle {
		return command
	}

	g, err := play.NewGoogleSynthesizer(ctx, sc.GoogleCredentials, sc.Voice, sc.Language, sc.CacheTTL, s.assets, player)
	if err != nil {
		slog.Warn("Google speech unavailable, using local synthesizer", "error", err)
		return command
	}
	s.closers = append(s.closers, g.Close)
	return g
}

// Config returns the configuration the service was built from.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Recorder returns the recording session manager.
func (s *Service) Recorder() *audio.Recorder {
	return s.recorder
}

// Engine returns the playback engine.
func (s *Service) Engine() *play.Engine {
	return s.engine
}

// Reporter returns the failure reporter.
func (s *Service) Reporter() *report.Reporter {
	return s.reporter
}

// Assets returns the asset store.
func (s *Service) Assets() *assets.Store {
	return s.assets
}

// SetTickObserver registers fn to receive recorder snapshots once per elapsed second.
// A nil fn removes the observer.
func (s *Service) SetTickObserver(fn func(audio.Snapshot)) {
	if fn == nil {
		s.onTick.Store(nil)
		return
	}
	s.onTick.Store(&fn)
}

func (s *Service) notifyTick(snap audio.Snapshot) {
	if fn := s.onTick.Load(); fn != nil {
		(*fn)(snap)
	}
}

// StartRecording starts capturing from the configured device.
func (s *Service) StartRecording(ctx context.Context) error {
	s.clearLastError()
	if err := s.recorder.Start(ctx); err != nil {
		s.fail(kindOf(err), fmt.Errorf("failed to start recording: %w", err))
		return err
	}
	return nil
}

// StopRecording finishes the recording and returns its asset reference.
func (s *Service) StopRecording() (string, error) {
	ref, err := s.recorder.Stop()
	if err != nil {
		s.fail(kindOf(err), fmt.Errorf("failed to stop recording: %w", err))
		return "", err
	}
	s.reporter.RecordingFinished()
	s.clearLastError()
	return ref, nil
}

// DiscardRecording drops the unsaved recording.
func (s *Service) DiscardRecording() error {
	if err := s.recorder.Discard(); err != nil {
		s.fail(kindOf(err), fmt.Errorf("failed to discard recording: %w", err))
		return err
	}
	return nil
}

// RecordingSnapshot returns the recorder state.
func (s *Service) RecordingSnapshot() audio.Snapshot {
	return s.recorder.Snapshot()
}

// CloseRecording tears the recorder down, dropping any capture in progress and any
// unsaved recording.
func (s *Service) CloseRecording() error {
	return s.recorder.Close()
}

// PreviewRecording plays the finished, unsaved recording. It returns nil when there is none.
func (s *Service) PreviewRecording() <-chan play.Result {
	snap := s.recorder.Snapshot()
	if snap.Status != audio.StatusFinished || snap.AssetRef == "" {
		return nil
	}
	return s.engine.Play(media.MediaItem{ID: "preview", Label: "Recording", AudioRef: snap.AssetRef})
}

// AddItem validates and stores a new item. Image and audio files are copied into
// the asset store; a taken recording is handed over to the item.
func (s *Service) AddItem(n NewItem) (media.MediaItem, error) {
	item := media.MediaItem{Label: strings.TrimSpace(n.Label)}

	recorded := ""
	if n.UseRecording {
		snap := s.recorder.Snapshot()
		if snap.Status == audio.StatusFinished {
			recorded = snap.AssetRef
		}
	}

	// validate before copying anything
	probe := item
	if n.ImagePath != "" {
		probe.ImageRef = n.ImagePath
	}
	if n.AudioPath != "" || recorded != "" {
		probe.AudioRef = "pending"
	}
	if err := probe.Validate(); err != nil {
		return media.MediaItem{}, err
	}

	var imported []string
	rollback := func() {
		for _, ref := range imported {
			_ = s.assets.Release(ref)
		}
	}

	if n.ImagePath != "" {
		ref, err := s.assets.Import(assets.KindImage, n.ImagePath)
		if err != nil {
			return media.MediaItem{}, fmt.Errorf("failed to import image: %w", err)
		}
		imported = append(imported, ref)
		item.ImageRef = ref
	}

	switch {
	case n.AudioPath != "":
		ref, err := s.assets.Import(assets.KindAudio, n.AudioPath)
		if err != nil {
			rollback()
			return media.MediaItem{}, fmt.Errorf("failed to import audio: %w", err)
		}
		imported = append(imported, ref)
		item.AudioRef = ref
	case recorded != "":
		item.AudioRef = recorded
	}

	saved, err := s.items.Append(item)
	if err != nil {
		rollback()
		s.fail(report.KindStorageFailure, err)
		return media.MediaItem{}, err
	}

	if recorded != "" {
		if _, err := s.recorder.Take(); err != nil {
			slog.Warn("Recording changed while saving item", "item_id", saved.ID, "error", err)
		}
	}

	slog.Info("Item added", "item_id", saved.ID, "label", saved.Label, "image", saved.ImageRef, "audio", saved.AudioRef)
	return saved, nil
}

// ListItems returns every item in insertion order.
func (s *Service) ListItems() ([]media.MediaItem, error) {
	return s.items.List()
}

// GetItem looks an item up by id.
func (s *Service) GetItem(id string) (media.MediaItem, bool, error) {
	return s.items.Get(id)
}

// ClearItems deletes every item and releases its assets.
func (s *Service) ClearItems() (int, error) {
	s.engine.Stop()

	removed, err := s.items.Clear()
	if err != nil {
		s.fail(report.KindStorageFailure, err)
		return 0, err
	}

	for _, item := range removed {
		for _, ref := range []string{item.ImageRef, item.AudioRef} {
			if err := s.assets.Release(ref); err != nil {
				slog.Warn("Failed to release asset", "item_id", item.ID, "asset", ref, "error", err)
			}
		}
	}

	slog.Info("Items cleared", "count", len(removed))
	return len(removed), nil
}

// PlayItem plays an item by id and waits for it to finish.
func (s *Service) PlayItem(ctx context.Context, id string) error {
	item, ok, err := s.items.Get(id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("item not found: %s", id)
	}
	return s.engine.PlayAndWait(ctx, item)
}

// ListDevices lists capture devices when the device backend can enumerate them.
func (s *Service) ListDevices() ([]audio.DeviceInfo, error) {
	lister, ok := s.device.(audio.DeviceLister)
	if !ok {
		return nil, fmt.Errorf("capture device cannot list devices")
	}
	return lister.ListDevices()
}

// Status summarizes the recorder, the playback engine and the item count.
func (s *Service) Status() (Status, error) {
	items, err := s.items.List()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Recorder:  s.recorder.Snapshot(),
		Playback:  s.engine.State(),
		ItemCount: len(items),
		LastError: s.GetLastError(),
	}, nil
}

// Close stops playback and recording and releases every backend.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		s.engine.Stop()
		if err := s.recorder.Close(); err != nil {
			errs = append(errs, err)
		}
		for _, c := range s.closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		s.reporter.Close(2 * time.Second)
		if err := s.items.Close(); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

func kindOf(err error) report.Kind {
	switch {
	case errors.Is(err, audio.ErrDeviceUnavailable):
		return report.KindDeviceUnavailable
	case errors.Is(err, audio.ErrInvalidState):
		return report.KindInvalidState
	default:
		return report.KindStorageFailure
	}
}

func (s *Service) fail(kind report.Kind, err error) {
	s.setLastError(err.Error())
	s.reporter.Report(kind, err)
}

// GetLastError returns the last error message.
func (s *Service) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *Service) setLastError(msg string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = msg
}

func (s *Service) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}
