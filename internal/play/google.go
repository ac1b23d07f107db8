package play

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/patrickmn/go-cache"
	"google.golang.org/api/option"

	"github.com/audiolibrelab/voicecards/internal/assets"
)

// SpeechAssets stores synthesized audio.
type SpeechAssets interface {
	WriteAsset(kind, ext string, fill func(io.WriteSeeker) error) (string, error)
	Release(ref string) error
}

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// GoogleSynthesizer speaks through Google Cloud Text-to-Speech. Synthesized clips are
// stored as speech assets, played with an AudioPlayer and kept for reuse until the cache TTL expires.
type GoogleSynthesizer struct {
	Voice    string
	Language string

	synthesize synthesizeFunc
	closeFn    func() error
	assets     SpeechAssets
	player     AudioPlayer
	clips      *cache.Cache
}

// NewGoogleSynthesizer connects to the Text-to-Speech API. An empty credentialsFile uses
// application default credentials.
func NewGoogleSynthesizer(ctx context.Context, credentialsFile, voice, language string, ttl time.Duration, store SpeechAssets, player AudioPlayer) (*GoogleSynthesizer, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := texttospeech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}

	g := newGoogleSynthesizer(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, voice, language, ttl, store, player)
	g.closeFn = client.Close
	return g, nil
}

func newGoogleSynthesizer(fn synthesizeFunc, voice, language string, ttl time.Duration, store SpeechAssets, player AudioPlayer) *GoogleSynthesizer {
	if language == "" {
		language = "en-US"
	}
	// A zero cleanup interval keeps go-cache from starting its janitor goroutine;
	// expired clips are swept on each Speak instead.
	clips := cache.New(ttl, 0)
	clips.OnEvicted(func(key string, value interface{}) {
		if ref, ok := value.(string); ok {
			if err := store.Release(ref); err != nil {
				slog.Warn("Failed to release speech clip", "asset", ref, "error", err)
			}
		}
	})

	return &GoogleSynthesizer{
		Voice:      voice,
		Language:   language,
		synthesize: fn,
		assets:     store,
		player:     player,
		clips:      clips,
	}
}

// Speak implements Synthesizer.
func (g *GoogleSynthesizer) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	g.clips.DeleteExpired()

	key := g.Language + "|" + g.Voice + "|" + text
	if cached, ok := g.clips.Get(key); ok {
		return g.player.Play(ctx, cached.(string))
	}

	resp, err := g.synthesize(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.Language,
			Name:         g.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_LINEAR16,
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: speech synthesis failed: %v", ErrPlaybackFailure, err)
	}

	ref, err := g.assets.WriteAsset(assets.KindSpeech, "wav", func(w io.WriteSeeker) error {
		_, err := w.Write(resp.GetAudioContent())
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store speech clip: %v", ErrPlaybackFailure, err)
	}
	g.clips.SetDefault(key, ref)

	return g.player.Play(ctx, ref)
}

// Close releases every cached clip and closes the API client.
func (g *GoogleSynthesizer) Close() error {
	g.clips.DeleteExpired()
	for key := range g.clips.Items() {
		g.clips.Delete(key)
	}
	if g.closeFn != nil {
		return g.closeFn()
	}
	return nil
}
