// server/internal/blobstore/minio.go
package blobstore

import (
	"context"
	"io"
	"net/url"
	"time"

	"spotmytrash-api-server/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Minio stores photos in a self-hosted MinIO bucket and serves presigned URLs.
type Minio struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewMinio connects and creates the bucket when it does not exist yet.
func NewMinio(ctx context.Context, cfg config.MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore: minio client for %s", cfg.Endpoint)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore: check bucket %s", cfg.Bucket)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, eris.Wrapf(err, "blobstore: create bucket %s", cfg.Bucket)
		}
		zap.L().Info("blobstore: created minio bucket", zap.String("bucket", cfg.Bucket))
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 7 * 24 * time.Hour
	}
	return &Minio{client: client, bucket: cfg.Bucket, urlExpiry: expiry}, nil
}

func (m *Minio) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, path, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return eris.Wrapf(err, "blobstore: put minio %s/%s", m.bucket, path)
	}
	return nil
}

// URL returns a presigned GET URL; it expires after the configured duration.
func (m *Minio) URL(ctx context.Context, path string) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, path, m.urlExpiry, url.Values{})
	if err != nil {
		return "", eris.Wrapf(err, "blobstore: presign %s/%s", m.bucket, path)
	}
	return u.String(), nil
}

func (m *Minio) Ping(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return eris.Wrapf(err, "blobstore: ping minio bucket %s", m.bucket)
	}
	return nil
}
