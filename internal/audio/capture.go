package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrDeviceUnavailable is returned when no capture device can be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrInvalidState is returned when a recorder operation is invoked outside its legal state.
	ErrInvalidState = errors.New("invalid recorder state")
)

// DeviceInfo describes a capture device.
type DeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// DeviceSession is an open capture stream. Close stops the stream and returns only
// after the data callback will no longer be invoked.
type DeviceSession interface {
	Close() error
}

// CaptureDevice opens capture streams. onData receives raw little-endian 16-bit PCM
// fragments in arrival order; the slice is only valid for the duration of the call.
type CaptureDevice interface {
	Open(ctx context.Context, onData func([]byte)) (DeviceSession, error)
}

// DeviceLister lists capture devices.
type DeviceLister interface {
	ListDevices() ([]DeviceInfo, error)
}

// Exclusive wraps a CaptureDevice so that at most one session is open at a time.
type Exclusive struct {
	device CaptureDevice

	mu   sync.Mutex
	held bool
}

// NewExclusive returns an Exclusive guard around device.
func NewExclusive(device CaptureDevice) *Exclusive {
	return &Exclusive{device: device}
}

// Open opens the wrapped device unless another session still holds it.
func (e *Exclusive) Open(ctx context.Context, onData func([]byte)) (DeviceSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.held {
		return nil, fmt.Errorf("%w: device is held by another session", ErrDeviceUnavailable)
	}

	session, err := e.device.Open(ctx, onData)
	if err != nil {
		return nil, err
	}

	e.held = true
	return &exclusiveSession{owner: e, inner: session}, nil
}

// Held reports whether a session currently holds the device.
func (e *Exclusive) Held() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.held
}

type exclusiveSession struct {
	owner *Exclusive
	inner DeviceSession
	once  sync.Once
	err   error
}

func (s *exclusiveSession) Close() error {
	s.once.Do(func() {
		s.err = s.inner.Close()
		s.owner.mu.Lock()
		s.owner.held = false
		s.owner.mu.Unlock()
	})
	return s.err
}

// SelectDevice picks a device by name. An empty name or "default" selects the default
// device, falling back to the first one. Otherwise an exact name match wins, then a unique
// substring match. A substring matching several devices is rejected as ambiguous.
func SelectDevice(devices []DeviceInfo, name string) (DeviceInfo, error) {
	if len(devices) == 0 {
		return DeviceInfo{}, fmt.Errorf("%w: no capture devices found", ErrDeviceUnavailable)
	}

	if name == "" || name == "default" {
		for _, d := range devices {
			if d.IsDefault {
				return d, nil
			}
		}
		return devices[0], nil
	}

	for _, d := range devices {
		if d.Name == name || d.ID == name {
			return d, nil
		}
	}

	var matches []DeviceInfo
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			matches = append(matches, d)
		}
	}

	switch len(matches) {
	case 0:
		return DeviceInfo{}, fmt.Errorf("%w: device not found: %s", ErrDeviceUnavailable, name)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Name
		}
		return DeviceInfo{}, fmt.Errorf("%w: device name %q is ambiguous: %v", ErrDeviceUnavailable, name, names)
	}
}
