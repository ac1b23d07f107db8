// Package media defines the items shown in the gallery.
package media

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidItem is returned when an item is missing its label or has neither an image nor a recording.
var ErrInvalidItem = errors.New("invalid item")

// MediaItem pairs an optional image with an optional voice recording.
// Items are immutable once created; references are opaque asset handles.
type MediaItem struct {
	ID        string    `json:"id" yaml:"id"`
	Label     string    `json:"label" yaml:"label"`
	ImageRef  string    `json:"image_ref,omitempty" yaml:"image_ref,omitempty"`
	AudioRef  string    `json:"audio_ref,omitempty" yaml:"audio_ref,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// HasAudio reports whether the item carries a recorded asset.
func (m MediaItem) HasAudio() bool {
	return m.AudioRef != ""
}

// HasImage reports whether the item carries an image asset.
func (m MediaItem) HasImage() bool {
	return m.ImageRef != ""
}

// DisplayLabel returns the label, or "Untitled" when it is blank.
func (m MediaItem) DisplayLabel() string {
	if strings.TrimSpace(m.Label) == "" {
		return "Untitled"
	}
	return m.Label
}

// Validate checks the creation invariants: a label and at least one of image or audio.
func (m MediaItem) Validate() error {
	if strings.TrimSpace(m.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidItem)
	}
	if !m.HasImage() && !m.HasAudio() {
		return fmt.Errorf("%w: an image or a recording is required", ErrInvalidItem)
	}
	return nil
}

// FormatElapsed renders seconds as MM:SS. Minutes grow past 59 without wrapping into hours.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
