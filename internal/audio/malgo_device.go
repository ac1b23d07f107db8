package audio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures from a miniaudio input device.
type MalgoDevice struct {
	SampleRate int
	Channels   int
	// DeviceName selects the input device, see SelectDevice.
	DeviceName string
	// Trace forwards miniaudio backend logs to slog at debug level.
	Trace bool
}

// NewMalgoDevice returns a capture device for the given format.
func NewMalgoDevice(sampleRate, channels int, deviceName string) *MalgoDevice {
	return &MalgoDevice{
		SampleRate: sampleRate,
		Channels:   channels,
		DeviceName: deviceName,
	}
}

func (m *MalgoDevice) initContext() (*malgo.AllocatedContext, error) {
	var logProc malgo.LogProc
	if m.Trace {
		logProc = func(message string) {
			slog.Debug("miniaudio", "message", strings.TrimSpace(message))
		}
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, logProc)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize audio context: %v", ErrDeviceUnavailable, err)
	}
	return mctx, nil
}

func releaseContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

func captureDeviceInfos(infos []malgo.DeviceInfo) []DeviceInfo {
	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		if strings.Contains(infos[i].Name(), "Discard all samples") {
			continue
		}
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        infos[i].ID.String(),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices
}

// ListDevices returns the available capture devices.
func (m *MalgoDevice) ListDevices() ([]DeviceInfo, error) {
	mctx, err := m.initContext()
	if err != nil {
		return nil, err
	}
	defer releaseContext(mctx)

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate capture devices: %w", err)
	}

	return captureDeviceInfos(infos), nil
}

// Open starts capturing from the selected device.
func (m *MalgoDevice) Open(ctx context.Context, onData func([]byte)) (DeviceSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mctx, err := m.initContext()
	if err != nil {
		return nil, err
	}

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		releaseContext(mctx)
		return nil, fmt.Errorf("%w: failed to enumerate capture devices: %v", ErrDeviceUnavailable, err)
	}

	selected, err := SelectDevice(captureDeviceInfos(infos), m.DeviceName)
	if err != nil {
		releaseContext(mctx)
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(m.Channels)
	deviceConfig.Capture.DeviceID = infos[selected.Index].ID.Pointer()
	deviceConfig.SampleRate = uint32(m.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onData(input)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		releaseContext(mctx)
		return nil, fmt.Errorf("%w: failed to initialize %s: %v", ErrDeviceUnavailable, selected.Name, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		releaseContext(mctx)
		return nil, fmt.Errorf("%w: failed to start %s: %v", ErrDeviceUnavailable, selected.Name, err)
	}

	slog.Debug("Capture device opened", "device", selected.Name, "sample_rate", m.SampleRate, "channels", m.Channels)
	return &malgoSession{ctx: mctx, device: device, name: selected.Name}, nil
}

type malgoSession struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	name   string
	once   sync.Once
}

func (s *malgoSession) Close() error {
	s.once.Do(func() {
		_ = s.device.Stop()
		s.device.Uninit()
		releaseContext(s.ctx)
		slog.Debug("Capture device released", "device", s.name)
	})
	return nil
}
