package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/audiolibrelab/voicecards/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_AppendAndList(t *testing.T) {
	s := openTestStore(t)

	first, err := s.Append(media.MediaItem{Label: "Cat", ImageRef: "image/cat.png"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	_, err = s.Append(media.MediaItem{ID: "fixed-id", Label: "Dog", AudioRef: "audio/dog.wav", CreatedAt: created})
	require.NoError(t, err)

	items, err := s.List()
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Cat", items[0].Label)
	assert.Equal(t, "image/cat.png", items[0].ImageRef)
	assert.Equal(t, "fixed-id", items[1].ID)
	assert.Equal(t, "audio/dog.wav", items[1].AudioRef)
	assert.True(t, created.Equal(items[1].CreatedAt))
}

func TestStore_AppendDuplicateID(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Append(media.MediaItem{ID: "a", Label: "One", ImageRef: "image/1.png"})
	require.NoError(t, err)
	_, err = s.Append(media.MediaItem{ID: "a", Label: "Two", ImageRef: "image/2.png"})
	assert.Error(t, err)
}

func TestStore_Get(t *testing.T) {
	s := openTestStore(t)

	item, err := s.Append(media.MediaItem{Label: "Cat", AudioRef: "audio/cat.wav"})
	require.NoError(t, err)

	got, ok, err := s.Get(item.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Cat", got.Label)

	_, ok, err = s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Clear(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Append(media.MediaItem{Label: "Cat", ImageRef: "image/cat.png"})
	require.NoError(t, err)
	_, err = s.Append(media.MediaItem{Label: "Dog", AudioRef: "audio/dog.wav"})
	require.NoError(t, err)

	removed, err := s.Clear()
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	items, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, items)
}
