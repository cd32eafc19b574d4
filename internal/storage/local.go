package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes files into a directory served under urlPrefix
type LocalStore struct {
	dir       string
	urlPrefix string
}

// NewLocalStore does not touch the filesystem; the directory is created on first Put
func NewLocalStore(dir, urlPrefix string) *LocalStore {
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &LocalStore{dir: dir, urlPrefix: "/" + strings.Trim(urlPrefix, "/")}
}

// Dir is the directory files are written to
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Put(_ context.Context, obj Object) (string, error) {
	name := filepath.Base(obj.Name)
	if name == "." || name == string(filepath.Separator) || name != obj.Name {
		return "", fmt.Errorf("invalid object name %q", obj.Name)
	}

	// MkdirAll is a no-op when the directory exists, so concurrent first uploads are safe
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir %s: %w", s.dir, err)
	}

	dst := filepath.Join(s.dir, name)
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}

	_, copyErr := io.Copy(f, obj.Body)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write %s: %w", dst, err)
	}

	return path.Join(s.urlPrefix, name), nil
}

// Ping checks that the directory, if it exists, is a directory
func (s *LocalStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

// FileInfo describes a stored file
type FileInfo struct {
	Name    string
	URL     string
	ModTime time.Time
}

// Files lists regular files in the upload directory; a missing directory is empty
func (s *LocalStore) Files(_ context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload dir %s: %w", s.dir, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			URL:     path.Join(s.urlPrefix, e.Name()),
			ModTime: info.ModTime(),
		})
	}
	return files, nil
}

// Remove deletes a stored file; a missing file is not an error
func (s *LocalStore) Remove(_ context.Context, name string) error {
	if filepath.Base(name) != name {
		return fmt.Errorf("invalid object name %q", name)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
