package attachments

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Backend persists attachment bytes. Implementations must be safe for concurrent use.
type Backend interface {
	// Put writes r under name and returns the location to record in metadata.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	// Open returns the stored bytes, or ErrObjectNotFound.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}

// LocalBackend stores files in a single directory on the local filesystem.
type LocalBackend struct {
	dir string
}

func NewLocalBackend(dir string) (*LocalBackend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalBackend{dir: abs}, nil
}

func (b *LocalBackend) Dir() string {
	return b.dir
}

// Put writes to a temp file in the target directory and renames it into place,
// so a reader never sees a partially written file under its final name.
func (b *LocalBackend) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid storage name %q", name)
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(b.dir, ".upload-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	fail := func(err error) (string, error) {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}

	if _, err := io.Copy(tmp, r); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", err
	}

	dst := filepath.Join(b.dir, name)
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	return dst, nil
}

func (b *LocalBackend) Open(_ context.Context, path string) (io.ReadCloser, error) {
	if err := b.contains(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	return f, err
}

func (b *LocalBackend) Exists(_ context.Context, path string) (bool, error) {
	if err := b.contains(path); err != nil {
		return false, err
	}
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (b *LocalBackend) Delete(_ context.Context, path string) error {
	if err := b.contains(path); err != nil {
		return err
	}
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// contains rejects paths outside the storage directory.
func (b *LocalBackend) contains(path string) error {
	rel, err := filepath.Rel(b.dir, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || strings.ContainsRune(rel, filepath.Separator) {
		return fmt.Errorf("path %q is outside the storage directory", path)
	}
	return nil
}
