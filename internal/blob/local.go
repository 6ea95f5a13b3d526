package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxRenameAttempts = 1000

// LocalStore writes blobs below a directory on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory when needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob store requires a directory")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// WriteBlob stores data at dest relative to the root. An existing file is never
// overwritten: a numeric suffix is appended instead, and the returned reference
// is the relative path actually written.
func (s *LocalStore) WriteBlob(ctx context.Context, data []byte, dest string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel, err := cleanDest(dest)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(s.root, filepath.FromSlash(path.Dir(rel))), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}

	ext := path.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	candidate := rel
	for i := 0; i < maxRenameAttempts; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}

		f, err := os.OpenFile(filepath.Join(s.root, filepath.FromSlash(candidate)), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", candidate, err)
		}

		log.Debug().Str("path", candidate).Int("bytes", len(data)).Msg("Blob written")
		return candidate, nil
	}

	return "", fmt.Errorf("no free file name for %s", rel)
}
