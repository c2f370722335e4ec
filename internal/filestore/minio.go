package filestore

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/spigell/jobmatch/internal/logger"
)

// MinIOConfig describes an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// objectAPI is the part of *minio.Client used here.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, path string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	EndpointURL() *url.URL
}

// MinIO stores files as objects in one bucket.
type MinIO struct {
	client objectAPI
	bucket string
	logger *zap.Logger
}

// NewMinIO connects to the endpoint and makes sure the bucket exists.
func NewMinIO(ctx context.Context, cfg MinIOConfig, l *zap.Logger) (*MinIO, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("minio endpoint is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return newMinIO(ctx, client, cfg.Bucket, cfg.Region, l)
}

func newMinIO(ctx context.Context, client objectAPI, bucket, region string, l *zap.Logger) (*MinIO, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is not configured")
	}

	m := &MinIO{
		client: client,
		bucket: bucket,
		logger: logger.WithFields(logger.WithComponent(l, "filestore"), zap.String("bucket", bucket)),
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
		m.logger.Info("bucket created")
	}

	return m, nil
}

func (m *MinIO) Save(ctx context.Context, key, path string) (string, error) {
	key = strings.TrimPrefix(key, "/")

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := m.client.FPutObject(ctx, m.bucket, key, path, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("upload %q to %s: %w", path, m.bucket, err)
	}

	m.logger.Debug("object stored",
		zap.String("key", key),
		zap.Int64("size", info.Size),
	)

	return m.client.EndpointURL().JoinPath(m.bucket, key).String(), nil
}

func (m *MinIO) Delete(ctx context.Context, key string) error {
	key = strings.TrimPrefix(key, "/")
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s/%s: %w", m.bucket, key, err)
	}
	return nil
}
