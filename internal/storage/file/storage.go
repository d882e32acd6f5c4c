package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

const tempPrefix = ".tmp-"

// Storage keeps one area as a flat local directory.
type Storage struct {
	dir string
}

// NewStorage creates a Storage rooted at dir. The directory is created if it
// does not exist yet.
func NewStorage(dir string) (*Storage, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", dir, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", abs, err)
	}

	return &Storage{dir: abs}, nil
}

// Dir returns the absolute directory backing the area.
func (s *Storage) Dir() string {
	return s.dir
}

// Save writes src under name, replacing any existing file. The content is
// written to a temporary file first and renamed into place, so readers never
// observe a partial file.
func (s *Storage) Save(_ context.Context, name string, src io.Reader) (int64, error) {
	if err := storage.ValidateName(name); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, src)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(name)); err != nil {
		return 0, fmt.Errorf("failed to save file: %w", err)
	}

	return n, nil
}

// Load opens the named file for reading.
func (s *Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := s.Stat(ctx, name); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		return nil, wrapNotExist(err, "failed to load file")
	}

	return f, nil
}

// Stat returns metadata of the named file.
func (s *Storage) Stat(_ context.Context, name string) (storage.Info, error) {
	if err := storage.ValidateName(name); err != nil {
		return storage.Info{}, err
	}

	fi, err := os.Stat(s.path(name))
	if err != nil {
		return storage.Info{}, wrapNotExist(err, "failed to stat file")
	}

	if !fi.Mode().IsRegular() {
		return storage.Info{}, storage.ErrNotFound
	}

	return storage.Info{Name: name, Size: fi.Size(), ModTime: fi.ModTime()}, nil
}

// Delete removes the named file.
func (s *Storage) Delete(_ context.Context, name string) error {
	if err := storage.ValidateName(name); err != nil {
		return err
	}

	if err := os.Remove(s.path(name)); err != nil {
		return wrapNotExist(err, "failed to delete file")
	}

	return nil
}

// List returns every regular file in the area.
func (s *Storage) List(_ context.Context) ([]storage.Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	files := make([]storage.Info, 0, len(entries))
	for _, e := range entries {
		// Dot files include in-progress writes and are never addressable.
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		files = append(files, storage.Info{Name: e.Name(), Size: fi.Size(), ModTime: fi.ModTime()})
	}

	return files, nil
}

func (s *Storage) path(name string) string {
	return filepath.Join(s.dir, name)
}

func wrapNotExist(err error, msg string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}

	return fmt.Errorf("%s: %w", msg, err)
}
