package assets

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteAndOpen(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ref, err := store.WriteAsset(KindAudio, "wav", func(w io.WriteSeeker) error {
		_, err := w.Write([]byte("RIFF"))
		return err
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "audio/"))
	assert.True(t, strings.HasSuffix(ref, ".wav"))

	f, err := store.Open(ref)
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestStore_WriteAssetRemovesPartialFileOnError(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)

	_, err = store.WriteAsset(KindAudio, "wav", func(w io.WriteSeeker) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("encoder exploded")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(root, KindAudio))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_WriteAssetAppearsOnlyWhenComplete(t *testing.T) {
	root := t.TempDir()
	store, err := New(root)
	require.NoError(t, err)
	dir := filepath.Join(root, KindAudio)

	var during []string
	ref, err := store.WriteAsset(KindAudio, "wav", func(w io.WriteSeeker) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			during = append(during, e.Name())
		}
		_, err = w.Write([]byte("RIFF"))
		return err
	})
	require.NoError(t, err)

	require.Len(t, during, 1)
	assert.True(t, strings.HasPrefix(during[0], ".tmp-"), "content is written to a temp file first")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, strings.TrimPrefix(ref, KindAudio+"/"), entries[0].Name())
}

func TestStore_Import(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "Cat.PNG")
	require.NoError(t, os.WriteFile(src, []byte("png-bytes"), 0644))

	ref, err := store.Import(KindImage, src)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, ".png"))

	path, err := store.Path(ref)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	_, err = store.Import(KindImage, filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestStore_Release(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	ref, err := store.WriteAsset(KindSpeech, "wav", func(w io.WriteSeeker) error { return nil })
	require.NoError(t, err)

	require.NoError(t, store.Release(ref))
	path, _ := store.Path(ref)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Releasing twice or releasing nothing is harmless.
	assert.NoError(t, store.Release(ref))
	assert.NoError(t, store.Release(""))
}

func TestStore_PathRejectsEscapes(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	for _, ref := range []string{"", "/etc/passwd", "../secret", "audio/../../x", ".", `audio\x.wav`} {
		_, err := store.Path(ref)
		assert.ErrorIs(t, err, ErrInvalidRef, "ref=%q", ref)
	}
}
