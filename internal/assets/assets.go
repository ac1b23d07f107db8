// Package assets stores image and audio blobs on disk and hands out opaque references to them.
package assets

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Asset kinds used as the first reference segment.
const (
	KindImage  = "image"
	KindAudio  = "audio"
	KindSpeech = "speech"
)

// ErrInvalidRef is returned for references that do not name an asset inside the store.
var ErrInvalidRef = errors.New("invalid asset reference")

// Store keeps assets under a root directory. References look like "audio/<uuid>.wav"
// and must be treated as opaque by everything except this package.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a Store for it.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("assets directory is required")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the directory the store writes into.
func (s *Store) Root() string {
	return s.root
}

// WriteAsset creates a new asset of the given kind and lets fill write its content.
// Content goes to a hidden temp file that is renamed into place only once complete,
// so a reference never names a partial asset.
func (s *Store) WriteAsset(kind, ext string, fill func(io.WriteSeeker) error) (string, error) {
	ref := newRef(kind, ext)
	path := filepath.Join(s.root, filepath.FromSlash(ref))
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create asset: %w", err)
	}
	tmp := f.Name()

	if err := fill(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("failed to write asset: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close asset: %w", err)
	}

	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to set asset permissions: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	slog.Debug("Asset written", "ref", ref)
	return ref, nil
}

// Import copies an existing file into the store.
func (s *Store) Import(kind, srcPath string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", srcPath, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", srcPath, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", srcPath)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(srcPath)), ".")
	return s.WriteAsset(kind, ext, func(w io.WriteSeeker) error {
		_, err := io.Copy(w, src)
		return err
	})
}

// Path resolves a reference to its file path inside the store.
func (s *Store) Path(ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	clean := filepath.Clean(filepath.FromSlash(ref))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return filepath.Join(s.root, clean), nil
}

// Open opens an asset for reading.
func (s *Store) Open(ref string) (*os.File, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Release deletes an asset. Releasing a missing asset is not an error.
func (s *Store) Release(ref string) error {
	if ref == "" {
		return nil
	}
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release asset %s: %w", ref, err)
	}
	slog.Debug("Asset released", "ref", ref)
	return nil
}

func newRef(kind, ext string) string {
	name := uuid.New().String()
	if ext != "" {
		name += "." + ext
	}
	return kind + "/" + name
}
