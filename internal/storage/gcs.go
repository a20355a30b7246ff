package storage

import (
	"bytes"
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// GCSStore keeps each key as one gzipped tar ball object.
type GCSStore struct {
	cfg    GCSConfig
	bucket *storage.BucketHandle
}

// NewGCSStore connects to GCS with application default credentials unless a credentials file is
// configured. STORAGE_EMULATOR_HOST is honored.
func NewGCSStore(ctx context.Context, cfg GCSConfig) (*GCSStore, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating gcs client")
	}
	return &GCSStore{cfg: cfg, bucket: client.Bucket(cfg.Bucket)}, nil
}

func (s *GCSStore) object(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return objectName(s.cfg.Prefix, clean), nil
}

// Upload implements Store.
func (s *GCSStore) Upload(ctx context.Context, key, dir string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	w := s.bucket.Object(name).NewWriter(ctx)
	w.ChunkSize = PartSize
	if err := writeTgz(w, dir); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "uploading gs://%s/%s", s.cfg.Bucket, name)
	}
	if err := w.Close(); err != nil {
		return errors.Wrapf(err, "uploading gs://%s/%s", s.cfg.Bucket, name)
	}
	log.WithField("object", name).Debugf("stored artifact in gs://%s", s.cfg.Bucket)
	return nil
}

// Download implements Store.
func (s *GCSStore) Download(ctx context.Context, key, dest string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	r, err := s.bucket.Object(name).NewReader(ctx)
	if err != nil {
		return errors.Wrapf(err, "opening gs://%s/%s", s.cfg.Bucket, name)
	}
	defer func() {
		_ = r.Close()
	}()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return errors.Wrapf(err, "downloading gs://%s/%s", s.cfg.Bucket, name)
	}
	return extractTgz(buf.Bytes(), dest)
}

// Delete implements Store.
func (s *GCSStore) Delete(ctx context.Context, key string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	err = s.bucket.Object(name).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return errors.Wrapf(err, "deleting gs://%s/%s", s.cfg.Bucket, name)
}
