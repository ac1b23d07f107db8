// Package report collects non-fatal failures from recording, playback and presentation.
package report

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
)

// Kind classifies a reported failure.
type Kind string

const (
	KindDeviceUnavailable     Kind = "device_unavailable"
	KindPlaybackFailure       Kind = "playback_failure"
	KindInvalidState          Kind = "invalid_state"
	KindFullscreenUnavailable Kind = "fullscreen_unavailable"
	KindStorageFailure        Kind = "storage_failure"
)

// Sink receives failure notifications. Implementations must not block.
type Sink interface {
	Report(kind Kind, err error, attrs ...any)
}

// Notice is a user-facing summary of a reported failure.
type Notice struct {
	Kind    Kind
	Message string
	Time    time.Time
}

// Options configures a Reporter.
type Options struct {
	// Registry receives the reporter's metrics. A private registry is created when nil.
	Registry *prometheus.Registry
	// SentryDSN enables forwarding failures to Sentry.
	SentryDSN string
	// SentryTransport overrides the Sentry transport. Events are sent even with an empty DSN
	// when a transport is given.
	SentryTransport sentry.Transport
	Release         string
	Logger          *slog.Logger
	// NoticeBuffer is the number of notices kept for the UI before new ones are dropped.
	NoticeBuffer int
}

// Reporter logs failures, counts them and optionally forwards them to Sentry.
type Reporter struct {
	logger   *slog.Logger
	registry *prometheus.Registry

	failures   *prometheus.CounterVec
	recordings prometheus.Counter
	playbacks  prometheus.Counter

	hub     *sentry.Hub
	notices chan Notice

	mu     sync.Mutex
	closed bool
}

// New creates a Reporter and registers its metrics.
func New(opts Options) (*Reporter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if opts.NoticeBuffer <= 0 {
		opts.NoticeBuffer = 8
	}

	r := &Reporter{
		logger:   logger,
		registry: registry,
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "voicecards",
				Name:      "failures_total",
				Help:      "Non-fatal failures by kind.",
			},
			[]string{"kind"},
		),
		recordings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicecards",
			Name:      "recordings_finished_total",
			Help:      "Recordings stored as audio assets.",
		}),
		playbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "voicecards",
			Name:      "playbacks_started_total",
			Help:      "Audio or speech playbacks started.",
		}),
		notices: make(chan Notice, opts.NoticeBuffer),
	}

	for _, c := range []prometheus.Collector{r.failures, r.recordings, r.playbacks} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	if opts.SentryDSN != "" || opts.SentryTransport != nil {
		client, err := sentry.NewClient(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			Transport:        opts.SentryTransport,
			SampleRate:       1.0,
			AttachStacktrace: false,
			ServerName:       "",
			Release:          opts.Release,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry initialization failed: %w", err)
		}
		r.hub = sentry.NewHub(client, sentry.NewScope())
	}

	return r, nil
}

// Registry returns the registry the reporter's metrics live in.
func (r *Reporter) Registry() *prometheus.Registry {
	return r.registry
}

// Report records a non-fatal failure.
func (r *Reporter) Report(kind Kind, err error, attrs ...any) {
	if err == nil {
		return
	}

	args := append([]any{"kind", string(kind), "error", err}, attrs...)
	r.logger.Warn("Operation failed", args...)

	r.failures.WithLabelValues(string(kind)).Inc()

	if r.hub != nil {
		r.hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("kind", string(kind))
			r.hub.CaptureException(err)
		})
	}

	r.notify(Notice{Kind: kind, Message: noticeMessage(kind), Time: time.Now()})
}

func (r *Reporter) notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.notices <- n:
	default:
	}
}

// RecordingFinished counts a stored recording.
func (r *Reporter) RecordingFinished() {
	r.recordings.Inc()
}

// PlaybackStarted counts a started playback.
func (r *Reporter) PlaybackStarted() {
	r.playbacks.Inc()
}

// Notices delivers user-facing summaries of reported failures.
func (r *Reporter) Notices() <-chan Notice {
	return r.notices
}

// Close flushes pending Sentry events and closes the notice channel.
func (r *Reporter) Close(timeout time.Duration) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.notices)
	r.mu.Unlock()

	if r.hub != nil {
		r.hub.Flush(timeout)
	}
}

func noticeMessage(kind Kind) string {
	switch kind {
	case KindDeviceUnavailable:
		return "Microphone unavailable"
	case KindPlaybackFailure:
		return "Playback failed"
	case KindFullscreenUnavailable:
		return "Fullscreen unavailable"
	case KindStorageFailure:
		return "Could not save"
	default:
		return "Action ignored"
	}
}

// Discard is a Sink that drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) Report(Kind, error, ...any) {}
