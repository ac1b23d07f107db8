package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/audiolibrelab/voicecards/internal/assets"
	"github.com/audiolibrelab/voicecards/internal/media"

	"github.com/avast/retry-go/v5"
)

// Status represents the current state of the recorder
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRecording Status = "RECORDING"
	StatusStopping  Status = "STOPPING"
	StatusFinished  Status = "FINISHED"
	StatusFailed    Status = "FAILED"
)

// Ticker delivers elapsed-time ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. Tests substitute a manual clock.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

type systemTicker struct{ t *time.Ticker }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{time.NewTicker(d)} }

func (t systemTicker) C() <-chan time.Time { return t.t.C }
func (t systemTicker) Stop()               { t.t.Stop() }

// AssetWriter stores finished recordings.
type AssetWriter interface {
	WriteAsset(kind, ext string, fill func(io.WriteSeeker) error) (string, error)
	Release(ref string) error
}

// Snapshot is a point-in-time view of the recorder.
type Snapshot struct {
	Status         Status `json:"status"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	AssetRef       string `json:"asset_ref,omitempty"`
	Level          int    `json:"level"`
}

// Elapsed returns the elapsed time as MM:SS.
func (s Snapshot) Elapsed() string {
	return media.FormatElapsed(s.ElapsedSeconds)
}

// Options configures a Recorder.
type Options struct {
	SampleRate int
	Channels   int
	// OpenAttempts is the number of device acquisition attempts.
	OpenAttempts int
	OpenDelay    time.Duration
	// LevelWindow is the span of audio the input level is computed over.
	LevelWindow time.Duration
	Clock       Clock
	// OnTick is called after every elapsed-time tick, outside the recorder lock.
	OnTick func(Snapshot)
}

func (o *Options) applyDefaults() {
	if o.SampleRate <= 0 {
		o.SampleRate = 44100
	}
	if o.Channels <= 0 {
		o.Channels = 1
	}
	if o.OpenAttempts <= 0 {
		o.OpenAttempts = 1
	}
	if o.OpenDelay <= 0 {
		o.OpenDelay = 250 * time.Millisecond
	}
	if o.LevelWindow <= 0 {
		o.LevelWindow = 200 * time.Millisecond
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
}

// session owns the open device, the buffered fragments and the tick goroutine.
type session struct {
	handle   DeviceSession
	chunks   [][]byte
	size     int
	ticker   Ticker
	stopTick chan struct{}
	tickDone chan struct{}
	once     sync.Once
}

// release stops the ticker and closes the device. Safe to call more than once.
func (s *session) release() {
	s.once.Do(func() {
		if s.ticker != nil {
			close(s.stopTick)
			<-s.tickDone
			s.ticker.Stop()
		}
		if s.handle != nil {
			if err := s.handle.Close(); err != nil {
				slog.Warn("Failed to release capture device", "error", err)
			}
		}
	})
}

func (s *session) pcm() []byte {
	data := make([]byte, 0, s.size)
	for _, c := range s.chunks {
		data = append(data, c...)
	}
	return data
}

// Recorder runs one recording session at a time and produces a WAV asset when stopped.
type Recorder struct {
	device CaptureDevice
	assets AssetWriter
	opts   Options
	level  *LevelMeter

	// op serializes Start, Stop, Discard, Take and Close.
	op sync.Mutex

	mu       sync.Mutex
	status   Status
	elapsed  int
	assetRef string
	session  *session
}

// NewRecorder creates an idle recorder.
func NewRecorder(device CaptureDevice, store AssetWriter, opts Options) *Recorder {
	opts.applyDefaults()
	windowMs := int(opts.LevelWindow / time.Millisecond)
	return &Recorder{
		device: device,
		assets: store,
		opts:   opts,
		level:  NewLevelMeter(WindowBytes(windowMs, opts.SampleRate, opts.Channels)),
		status: StatusIdle,
	}
}

// Snapshot returns the current state.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Snapshot {
	snap := Snapshot{
		Status:         r.status,
		ElapsedSeconds: r.elapsed,
		AssetRef:       r.assetRef,
	}
	if r.status == StatusRecording {
		snap.Level = r.level.Level()
	}
	return snap
}

// Start opens the capture device and begins buffering. Starting from FINISHED or
// FAILED first releases the previous, unsaved asset.
func (r *Recorder) Start(ctx context.Context) error {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	if r.status == StatusRecording || r.status == StatusStopping {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("%w: can only start recording from idle or finished state, current: %s", ErrInvalidState, status)
	}
	previous := r.assetRef
	r.assetRef = ""
	r.elapsed = 0
	r.status = StatusIdle
	s := &session{}
	r.session = s
	r.mu.Unlock()

	r.releaseAsset(previous)
	r.level.Reset()

	var handle DeviceSession
	err := retry.New(
		retry.Attempts(uint(r.opts.OpenAttempts)),
		retry.Delay(r.opts.OpenDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		h, err := r.device.Open(ctx, func(data []byte) { r.appendChunk(s, data) })
		if err != nil {
			slog.Debug("Capture device open attempt failed", "error", err)
			return err
		}
		handle = h
		return nil
	})
	if err != nil {
		r.mu.Lock()
		r.session = nil
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	r.mu.Lock()
	s.handle = handle
	s.ticker = r.opts.Clock.NewTicker(time.Second)
	s.stopTick = make(chan struct{})
	s.tickDone = make(chan struct{})
	r.status = StatusRecording
	r.mu.Unlock()

	go r.tick(s)

	slog.Info("Recording started", "sample_rate", r.opts.SampleRate, "channels", r.opts.Channels)
	return nil
}

func (r *Recorder) appendChunk(s *session, data []byte) {
	if len(data) == 0 {
		return
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != s {
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
	r.level.Write(chunk)
}

func (r *Recorder) tick(s *session) {
	defer close(s.tickDone)
	for {
		select {
		case <-s.stopTick:
			return
		case <-s.ticker.C():
			r.mu.Lock()
			if r.session != s || r.status != StatusRecording {
				r.mu.Unlock()
				continue
			}
			r.elapsed++
			snap := r.snapshotLocked()
			r.mu.Unlock()

			if r.opts.OnTick != nil {
				r.opts.OnTick(snap)
			}
		}
	}
}

// Stop ends the recording, releases the device and stores the buffered fragments
// as one WAV asset. It returns the asset reference.
func (r *Recorder) Stop() (string, error) {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	if r.status != StatusRecording {
		status := r.status
		r.mu.Unlock()
		return "", fmt.Errorf("%w: can only stop from recording state, current: %s", ErrInvalidState, status)
	}
	s := r.session
	r.session = nil
	r.status = StatusStopping
	r.mu.Unlock()

	s.release()
	pcm := s.pcm()
	s.chunks = nil
	r.level.Reset()

	ref, err := r.assets.WriteAsset(assets.KindAudio, "wav", func(w io.WriteSeeker) error {
		return EncodeWAV(w, pcm, r.opts.SampleRate, r.opts.Channels)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.status = StatusFailed
		return "", fmt.Errorf("failed to store recording: %w", err)
	}

	r.status = StatusFinished
	r.assetRef = ref
	slog.Info("Recording finished", "asset", ref, "elapsed", media.FormatElapsed(r.elapsed), "bytes", len(pcm))
	return ref, nil
}

// Discard releases any finished asset and returns to IDLE.
func (r *Recorder) Discard() error {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	if r.status == StatusRecording || r.status == StatusStopping {
		status := r.status
		r.mu.Unlock()
		return fmt.Errorf("%w: can only discard from idle, finished or failed state, current: %s", ErrInvalidState, status)
	}
	ref := r.assetRef
	r.assetRef = ""
	r.elapsed = 0
	r.status = StatusIdle
	r.mu.Unlock()

	r.releaseAsset(ref)
	return nil
}

// Take hands the finished asset over to the caller and returns to IDLE without
// releasing it.
func (r *Recorder) Take() (string, error) {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusFinished {
		return "", fmt.Errorf("%w: can only take a recording from finished state, current: %s", ErrInvalidState, r.status)
	}
	ref := r.assetRef
	r.assetRef = ""
	r.elapsed = 0
	r.status = StatusIdle
	return ref, nil
}

// Close tears the recorder down. An open device is released and buffered fragments
// are dropped; an unsaved finished asset is released.
func (r *Recorder) Close() error {
	r.op.Lock()
	defer r.op.Unlock()

	r.mu.Lock()
	s := r.session
	r.session = nil
	ref := r.assetRef
	r.assetRef = ""
	wasRecording := r.status == StatusRecording
	r.elapsed = 0
	r.status = StatusIdle
	r.mu.Unlock()

	if s != nil {
		s.release()
		s.chunks = nil
	}
	r.level.Reset()
	r.releaseAsset(ref)

	if wasRecording {
		slog.Info("Recording abandoned on teardown")
	}
	return nil
}

func (r *Recorder) releaseAsset(ref string) {
	if ref == "" {
		return
	}
	if err := r.assets.Release(ref); err != nil {
		slog.Warn("Failed to release recording", "asset", ref, "error", err)
	}
}
