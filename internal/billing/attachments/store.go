package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Store persists attachment blobs. Put returns the storage path used to
// delete the blob later.
type Store interface {
	Put(ctx context.Context, fileName string, r io.Reader) (path string, size int64, err error)
	Delete(ctx context.Context, path string) error
}

// FileStore keeps blobs on the local filesystem under a base directory, one
// uuid-prefixed file per blob so repeated uploads of the same name never
// collide.
type FileStore struct {
	base string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(base string) (*FileStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("attachments: create store dir: %w", err)
	}
	return &FileStore{base: base}, nil
}

func (s *FileStore) Put(_ context.Context, fileName string, r io.Reader) (string, int64, error) {
	name := uuid.NewString() + "_" + filepath.Base(fileName)
	path := filepath.Join(s.base, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, size, nil
}

func (s *FileStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
