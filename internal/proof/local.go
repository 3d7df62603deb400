package proof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage writes photos as <uuid>.jpg under a directory.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create proof dir: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

func (l *LocalStorage) Save(_ context.Context, r io.Reader) (string, error) {
	path := filepath.Join(l.dir, uuid.NewString()+".jpg")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create proof file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write proof file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close proof file: %w", err)
	}
	return path, nil
}

// Open only reads files inside the storage directory, whatever ref says.
func (l *LocalStorage) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	name := filepath.Base(ref)
	if !strings.HasSuffix(name, ".jpg") {
		return nil, ErrNotFound
	}
	f, err := os.Open(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open proof file: %w", err)
	}
	return f, nil
}
