package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/toursvc/conversion-pipeline/internal/pipelineerr"
)

// S3Store is a BlobStore backed by any S3-compatible endpoint
// (Cloudflare R2, MinIO, AWS S3 itself). Adapted from the teacher's
// R2-specific client, generalized to a configurable base endpoint.
type S3Store struct {
	client *s3.Client
	bucket string
}

// S3Config configures an S3Store.
type S3Config struct {
	Endpoint        string // empty for real AWS S3
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// NewS3Store creates an S3-backed BlobStore from explicit configuration.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, pipelineerr.Validation("s3_config_incomplete", "missing S3 bucket or credentials")
	}

	opts := s3.Options{
		Region:      orDefault(cfg.Region, "auto"),
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &S3Store{client: s3.New(opts), bucket: cfg.Bucket}, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (s *S3Store) Get(ctx context.Context, key, destDir string) (string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", pipelineerr.IO("s3_get_failed", fmt.Sprintf("failed to get object %q", key), err)
	}
	defer out.Body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", pipelineerr.IO("blob_mkdir_failed", "failed to create destination directory", err)
	}
	localPath := filepath.Join(destDir, filepath.Base(key))
	f, err := os.Create(localPath)
	if err != nil {
		return "", pipelineerr.IO("blob_create_failed", "failed to create local destination", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return "", pipelineerr.IO("s3_download_failed", "failed to write downloaded object", err)
	}
	return localPath, nil
}

func (s *S3Store) Put(ctx context.Context, localPath, key string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return pipelineerr.IO("blob_read_failed", "failed to read local file for upload", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return pipelineerr.IO("s3_put_failed", fmt.Sprintf("failed to put object %q", key), err)
	}
	return nil
}
