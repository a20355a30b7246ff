package storage

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/docker/go-units"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/pkg/artifacts/archive"
	"github.com/apartresearch/reward-analyzer/pkg/ptrs"
)

const defaultS3Region = "us-west-2"

// S3Store keeps each key as one gzipped tar ball object.
type S3Store struct {
	cfg        S3Config
	client     *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
}

// NewS3Store builds an S3 session from cfg. Without explicit keys the default AWS credential chain
// is used.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	awsCfg := &aws.Config{Region: aws.String(defaultS3Region)}
	if cfg.Region != "" {
		awsCfg.Region = aws.String(cfg.Region)
	}
	if cfg.EndpointURL != "" {
		awsCfg.Endpoint = aws.String(cfg.EndpointURL)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.AccessKey != nil && cfg.SecretKey != nil {
		awsCfg.Credentials = credentials.NewStaticCredentials(*cfg.AccessKey, *cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, errors.Wrap(err, "creating aws session")
	}
	return &S3Store{
		cfg:    cfg,
		client: s3.New(sess),
		uploader: s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
			u.PartSize = PartSize
		}),
		downloader: s3manager.NewDownloader(sess, func(d *s3manager.Downloader) {
			d.PartSize = PartSize
		}),
	}, nil
}

func (s *S3Store) object(key string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return objectName(s.cfg.Prefix, clean), nil
}

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, key, dir string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	if size, err := archive.TarSize(dir); err == nil {
		log.WithField("object", name).Infof("uploading %s to s3://%s",
			units.HumanSize(float64(size)), s.cfg.Bucket)
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeTgz(pw, dir))
	}()
	_, err = s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: ptrs.Ptr(s.cfg.Bucket),
		Key:    ptrs.Ptr(name),
		Body:   pr,
	})
	_ = pr.CloseWithError(err)
	return errors.Wrapf(err, "uploading s3://%s/%s", s.cfg.Bucket, name)
}

// Download implements Store.
func (s *S3Store) Download(ctx context.Context, key, dest string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	buf := aws.NewWriteAtBuffer(nil)
	if _, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: ptrs.Ptr(s.cfg.Bucket),
		Key:    ptrs.Ptr(name),
	}); err != nil {
		return errors.Wrapf(err, "downloading s3://%s/%s", s.cfg.Bucket, name)
	}
	return extractTgz(buf.Bytes(), dest)
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	name, err := s.object(key)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: ptrs.Ptr(s.cfg.Bucket),
		Key:    ptrs.Ptr(name),
	})
	return errors.Wrapf(err, "deleting s3://%s/%s", s.cfg.Bucket, name)
}
