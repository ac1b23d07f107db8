package play

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/go-audio/wav"
)

// AssetOpener opens stored assets.
type AssetOpener interface {
	Open(ref string) (*os.File, error)
}

// MalgoPlayer plays WAV assets on the default miniaudio output device.
type MalgoPlayer struct {
	assets AssetOpener
}

// NewMalgoPlayer returns a player reading assets from the given store.
func NewMalgoPlayer(assets AssetOpener) *MalgoPlayer {
	return &MalgoPlayer{assets: assets}
}

type pcmClip struct {
	data       []byte
	sampleRate int
	channels   int
}

// loadWAV decodes a WAV asset into interleaved 16-bit little-endian PCM.
func loadWAV(assets AssetOpener, ref string) (*pcmClip, error) {
	f, err := assets.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPlaybackFailure, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %w: %s is not a valid wav file", ErrPlaybackFailure, ErrUnsupportedFormat, ref)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", ErrPlaybackFailure, ref, err)
	}

	return &pcmClip{
		data:       toS16LE(buf.Data, int(dec.BitDepth)),
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
	}, nil
}

func toS16LE(samples []int, bitDepth int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		switch bitDepth {
		case 8:
			s = (s - 128) << 8
		case 24:
			s >>= 8
		case 32:
			s >>= 16
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

// Play implements AudioPlayer.
func (m *MalgoPlayer) Play(ctx context.Context, ref string) error {
	clip, err := loadWAV(m.assets, ref)
	if err != nil {
		return err
	}
	if len(clip.data) == 0 {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize audio context: %v", ErrPlayerUnavailable, err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(clip.channels)
	deviceConfig.SampleRate = uint32(clip.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	finished := make(chan struct{})
	var once sync.Once
	pos := 0

	callbacks := malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			n := copy(output, clip.data[pos:])
			pos += n
			for i := n; i < len(output); i++ {
				output[i] = 0
			}
			if pos >= len(clip.data) {
				once.Do(func() { close(finished) })
			}
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize playback device: %v", ErrPlayerUnavailable, err)
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return fmt.Errorf("%w: failed to start playback device: %v", ErrPlayerUnavailable, err)
	}

	slog.Debug("Playback started", "asset", ref, "sample_rate", clip.sampleRate, "channels", clip.channels)

	select {
	case <-finished:
		_ = device.Stop()
		return nil
	case <-ctx.Done():
		_ = device.Stop()
		return ctx.Err()
	}
}
