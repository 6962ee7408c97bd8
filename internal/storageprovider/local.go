package storageprovider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/getsentry/difcheck/internal/storageutil"
)

// Local implements storageutil.ObjectHandler interface on top of a directory.
type Local struct {
	Root string
}

func (l *Local) path(name string) (string, error) {
	name = filepath.FromSlash(name)
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("storageprovider: object name %q escapes %s", name, l.Root)
	}
	return filepath.Join(l.Root, name), nil
}

// Put writes a file to the storage provider with name being the path.
// The object only becomes visible once the writer is closed.
func (l *Local) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, err
	}
	return &localWriter{f: f, path: path}, nil
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (l *Local) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &localReader{File: f, size: info.Size()}, nil
}

// localWriter implements io.WriteCloser
type localWriter struct {
	f    *os.File
	path string
}

func (w *localWriter) Write(b []byte) (int, error) {
	return w.f.Write(b)
}

func (w *localWriter) Close() error {
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.path); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	return nil
}

// Abort drops the object without publishing it.
func (w *localWriter) Abort() error {
	_ = w.f.Close()
	return os.Remove(w.f.Name())
}

// localReader implements storageutil.ReadSizeCloser
type localReader struct {
	*os.File
	size int64
}

func (r *localReader) Size() int64 {
	return r.size
}

var _ storageutil.Aborter = (*localWriter)(nil)
