package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"carwatch/internal/scraper"
	"carwatch/internal/storage"
)

// Store хранит список в текстовом файле UTF-8, одна подпись на строку.
// Подписи не должны содержать переводов строк: экранирования нет.
type Store struct {
	path string
}

var (
	_ storage.StateStore = (*Store)(nil)
	_ storage.Locker     = (*Store)(nil)
)

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

func (s *Store) Load(ctx context.Context) (scraper.ItemList, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read state file: %w", err)
	}

	return decode(string(content)), true, nil
}

func (s *Store) Save(ctx context.Context, items scraper.ItemList) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := writeFileAtomicDurable(s.path, encode(items), 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func encode(items scraper.ItemList) []byte {
	var b bytes.Buffer
	for _, item := range items {
		b.WriteString(item)
		b.WriteByte('\n')
	}
	return b.Bytes()
}

func decode(content string) scraper.ItemList {
	items := scraper.ItemList{}
	if content == "" {
		return items
	}
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		items = append(items, strings.TrimSuffix(line, "\r"))
	}
	return items
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
