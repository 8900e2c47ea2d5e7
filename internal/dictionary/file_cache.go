package dictionary

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileCache keeps one JSON file per word under a directory.
type FileCache struct {
	rootDir string
}

func NewFileCache(cacheDirectory string) *FileCache {
	return &FileCache{
		rootDir: cacheDirectory,
	}
}

func (f *FileCache) filePath(word string) string {
	return filepath.Join(f.rootDir, word+".json")
}

func (f *FileCache) Load(ctx context.Context, word string) ([]byte, bool, error) {
	contents, err := os.ReadFile(f.filePath(word))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("os.ReadFile > %w", err)
	}
	return contents, true, nil
}

func (f *FileCache) Store(ctx context.Context, word string, contents []byte) error {
	if err := os.MkdirAll(f.rootDir, 0o755); err != nil {
		return fmt.Errorf("os.MkdirAll > %w", err)
	}
	if err := os.WriteFile(f.filePath(word), contents, 0o644); err != nil {
		return fmt.Errorf("os.WriteFile > %w", err)
	}
	return nil
}
