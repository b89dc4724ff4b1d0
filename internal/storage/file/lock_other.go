//go:build !unix

package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"carwatch/internal/storage"
)

// Lock создаёт <path>.lock эксклюзивно. В отличие от flock, файл переживает
// падение процесса: после аварии его нужно удалить вручную.
func (s *Store) Lock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	f, err := os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, storage.ErrLocked
		}
		return nil, fmt.Errorf("failed to create lock file: %w", err)
	}

	return func() error {
		closeErr := f.Close()
		removeErr := os.Remove(s.lockPath())
		return errors.Join(closeErr, removeErr)
	}, nil
}
