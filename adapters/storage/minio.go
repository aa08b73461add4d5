package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/cardex-app/imagekit/config"
	apperrors "github.com/cardex-app/imagekit/errors"
)

// Minio is the BlobStore backed by an S3-compatible object store.
type Minio struct {
	mc         *minio.Client
	publicBase string
}

// NewMinio connects to the endpoint in cfg.  PublicBaseURL overrides the
// base used for public URLs (CDN or reverse proxy); by default URLs point
// straight at the endpoint.
func NewMinio(cfg config.MinioConfig) (*Minio, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "minio.new", err)
	}

	base := cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = scheme + "://" + cfg.Endpoint
	}
	return &Minio{mc: mc, publicBase: strings.TrimRight(base, "/")}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Minio) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := m.mc.BucketExists(ctx, bucket)
	if err != nil {
		return apperrors.Transient("minio.bucket_exists", err)
	}
	if exists {
		return nil
	}
	if err := m.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return apperrors.Transient("minio.make_bucket", err)
	}
	return nil
}

func (m *Minio) Store(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "minio.store", err)
	}
	if len(data) == 0 {
		return apperrors.New(apperrors.CategoryStorage, "minio.store", apperrors.ErrEmptyInput)
	}

	_, err := m.mc.PutObject(ctx, bucket, path, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return apperrors.Transient("minio.store", err)
	}
	return nil
}

func (m *Minio) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicBase, bucket, path)
}

func (m *Minio) Remove(ctx context.Context, bucket string, paths []string) error {
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		err := m.mc.RemoveObject(ctx, bucket, p, minio.RemoveObjectOptions{})
		if err != nil {
			// A missing object is an acceptable outcome for a delete.
			var resp minio.ErrorResponse
			if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
				continue
			}
			if firstErr == nil {
				firstErr = apperrors.Transient("minio.remove", err)
			}
		}
	}
	return firstErr
}
