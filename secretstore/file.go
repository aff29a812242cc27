package secretstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const fileExt = ".secret"

// File stores one file per namespace inside a directory. Files are written
// with 0600 permissions via a temporary file and rename, so readers never
// see a partial secret.
type File struct {
	mu  sync.Mutex
	dir string
}

// NewFile returns a store rooted at dir. The directory is created on first write.
func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, errors.New("secretstore: empty directory")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("secretstore: resolve %s: %w", dir, err)
	}
	return &File{dir: abs}, nil
}

// Dir returns the root directory.
func (f *File) Dir() string { return f.dir }

func (f *File) path(namespace string) string {
	return filepath.Join(f.dir, base64.RawURLEncoding.EncodeToString([]byte(namespace))+fileExt)
}

func (f *File) Get(_ context.Context, namespace string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(f.path(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &Error{Op: "get", Namespace: namespace, Err: err}
	}
	return data, nil
}

func (f *File) Set(_ context.Context, namespace string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return &Error{Op: "set", Namespace: namespace, Err: err}
	}
	final := f.path(namespace)
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return &Error{Op: "set", Namespace: namespace, Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &Error{Op: "set", Namespace: namespace, Err: err}
	}
	if err := tmp.Chmod(0o600); err != nil {
		return cleanup(err)
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "set", Namespace: namespace, Err: err}
	}
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return &Error{Op: "set", Namespace: namespace, Err: err}
	}
	return nil
}

func (f *File) Delete(_ context.Context, namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path(namespace))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "delete", Namespace: namespace, Err: err}
	}
	return nil
}

// Ping checks that the directory is usable.
func (f *File) Ping(_ context.Context) error {
	info, err := os.Stat(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("secretstore: %s is not a directory", f.dir)
	}
	return nil
}
