// Package imagestore keeps uploaded leaf photos on local disk.
package imagestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TimeLayout prefixes every stored file name.
const TimeLayout = "20060102150405"

// ErrOutsideDir is returned for paths that do not resolve inside the store.
var ErrOutsideDir = errors.New("path is outside the uploads directory")

// Store writes images under a single directory.
type Store struct {
	dir string
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}
	return &Store{dir: filepath.Clean(dir)}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes data as "<dir>/<YYYYMMDDhhmmss>_<name>" and returns that path.
// Only the base of original is used. An existing file is never overwritten;
// a numeric suffix is added instead.
func (s *Store) Save(original string, data []byte, now time.Time) (string, error) {
	name := SafeName(original)
	stamp := now.Format(TimeLayout)

	for attempt := 0; attempt < 100; attempt++ {
		candidate := stamp + "_" + name
		if attempt > 0 {
			ext := filepath.Ext(name)
			candidate = stamp + "_" + strings.TrimSuffix(name, ext) + "_" + strconv.Itoa(attempt) + ext
		}
		path := filepath.Join(s.dir, candidate)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("no free file name for %q", name)
}

// Open reads a stored image.
func (s *Store) Open(path string) ([]byte, error) {
	if err := s.contains(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Remove deletes a stored image. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if err := s.contains(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Store) contains(path string) error {
	rel, err := filepath.Rel(s.dir, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return ErrOutsideDir
	}
	return nil
}

// SafeName reduces a client supplied file name to a plain base name.
func SafeName(original string) string {
	name := strings.ReplaceAll(original, "\\", "/")
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == '/' {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
