// Package storage moves artifact directories in and out of the configured object store.
package storage

import (
	"context"
	"path"
	"strings"

	"github.com/docker/go-units"
	"github.com/pkg/errors"
)

// PartSize is the chunk size used for multipart transfers.
const PartSize = 5 * units.MiB

// Store keeps directory trees under string keys. Keys use forward slashes.
type Store interface {
	// Upload stores the contents of dir under key, replacing anything already there.
	Upload(ctx context.Context, key, dir string) error
	// Download restores the contents stored under key into dest.
	Download(ctx context.Context, key, dest string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// New returns the store selected by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type() {
	case SharedFS:
		return NewSharedFSStore(*cfg.SharedFS), nil
	case S3:
		return NewS3Store(*cfg.S3)
	case GCS:
		return NewGCSStore(ctx, *cfg.GCS)
	default:
		return nil, errors.New("no storage backend configured")
	}
}

func cleanKey(key string) (string, error) {
	clean := strings.Trim(path.Clean("/"+key), "/")
	if clean == "" {
		return "", errors.Errorf("invalid storage key %q", key)
	}
	return clean, nil
}

func objectName(prefix, key string) string {
	return strings.TrimLeft(strings.TrimRight(prefix, "/")+"/"+key+".tgz", "/")
}
