// Package blob writes downloaded media to durable storage.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Store writes bytes to a destination path and returns a reference to the stored object.
type Store interface {
	WriteBlob(ctx context.Context, data []byte, dest string) (string, error)
}

// Config selects and configures a blob backend.
type Config struct {
	Backend    string // "local" or "s3"
	Dir        string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

// New creates the configured blob store.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir)
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.Backend)
	}
}

// cleanDest normalises a destination path and rejects paths escaping the store root.
func cleanDest(dest string) (string, error) {
	p := path.Clean("/" + strings.ReplaceAll(dest, "\\", "/"))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("invalid blob destination %q", dest)
	}
	return p, nil
}
