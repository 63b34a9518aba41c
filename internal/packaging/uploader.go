package packaging

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options are the object-store settings for bundle uploads.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Uploader pushes finished bundles to an object store so they outlive the
// server process.
type Uploader struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func NewUploader(opts S3Options) (*Uploader, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, fmt.Errorf("packaging: s3 endpoint is required")
	}
	if strings.TrimSpace(opts.AccessKey) == "" || strings.TrimSpace(opts.SecretKey) == "" {
		return nil, fmt.Errorf("packaging: s3 credentials are required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("packaging: init s3 client: %w", err)
	}
	return &Uploader{client: client, bucket: opts.Bucket, region: region}, nil
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
	})
	return u.initErr
}

// Upload stores the bundle and returns its object key.
func (u *Uploader) Upload(ctx context.Context, runID, runName string, data []byte) (string, error) {
	if err := u.ensureBucket(ctx); err != nil {
		return "", fmt.Errorf("packaging: ensure bucket: %w", err)
	}
	key := fmt.Sprintf("bundles/%s/%s-%s.zip",
		runID, runName, time.Now().UTC().Format("20060102-150405"))
	_, err := u.client.PutObject(ctx, u.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/zip"})
	if err != nil {
		return "", fmt.Errorf("packaging: upload %s: %w", key, err)
	}
	return key, nil
}
