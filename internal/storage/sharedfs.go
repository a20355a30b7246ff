package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SharedFSStore keeps each key as a plain directory tree under its root.
type SharedFSStore struct {
	root string
}

// NewSharedFSStore returns a store rooted at host_path/storage_path.
func NewSharedFSStore(cfg SharedFSConfig) *SharedFSStore {
	return &SharedFSStore{root: filepath.Join(cfg.HostPath, cfg.StoragePath)}
}

func (s *SharedFSStore) path(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Upload implements Store.
func (s *SharedFSStore) Upload(ctx context.Context, key, dir string) error {
	dst, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "clearing %s", dst)
	}
	if err := copyTree(ctx, dir, dst); err != nil {
		return errors.Wrapf(err, "uploading %s to %s", dir, dst)
	}
	log.WithFields(log.Fields{"key": key, "path": dst}).Debug("stored artifact on shared fs")
	return nil
}

// Download implements Store.
func (s *SharedFSStore) Download(ctx context.Context, key, dest string) error {
	src, err := s.path(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "looking up %s", key)
	}
	return errors.Wrapf(copyTree(ctx, src, dest), "downloading %s", key)
}

// Delete implements Store.
func (s *SharedFSStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return os.RemoveAll(p)
}

func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(p, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst) // #nosec G304
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
