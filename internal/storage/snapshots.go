package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var ErrNotConfigured = errors.New("snapshot storage is not configured")

// SnapshotStore keeps the offending frames in an S3-compatible bucket
// (Cloudflare R2 in deployment). Uploads are best effort; the pipeline works
// without them.
type SnapshotStore struct {
	client        *s3.Client
	bucket        string
	endpoint      string
	publicBaseURL string
}

type storeConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string
	PublicBaseURL string
}

func NewSnapshotStoreFromEnv() (*SnapshotStore, error) {
	cfg := storeConfig{
		Endpoint:      strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ENDPOINT")),
		AccessKey:     strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ACCESS_KEY_ID")),
		SecretKey:     strings.TrimSpace(os.Getenv("SNAPSHOT_S3_SECRET_ACCESS_KEY")),
		Bucket:        strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET")),
		Region:        strings.TrimSpace(os.Getenv("SNAPSHOT_S3_REGION")),
		PublicBaseURL: strings.TrimRight(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_PUBLIC_BASE_URL")), "/"),
	}

	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Region == "" {
		cfg.Region = "auto"
	}

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		if service == s3.ServiceID {
			return aws.Endpoint{
				URL:               cfg.Endpoint,
				HostnameImmutable: true,
			}, nil
		}
		return aws.Endpoint{}, &aws.EndpointNotFoundError{}
	})

	awsCfg := aws.Config{
		Region:                      cfg.Region,
		Credentials:                 credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		EndpointResolverWithOptions: resolver,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &SnapshotStore{
		client:        client,
		bucket:        cfg.Bucket,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// UploadSnapshot stores the frame under violations/<plate>/<timestamp>.jpg
// and returns the public URL of the object.
func (s *SnapshotStore) UploadSnapshot(ctx context.Context, plate string, ts time.Time, data []byte) (string, error) {
	if s == nil || s.client == nil {
		return "", ErrNotConfigured
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty snapshot")
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	key := fmt.Sprintf("violations/%s/%s.jpg", plate, ts.UTC().Format("20060102T150405.000"))
	input := &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("image/jpeg"),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("snapshot upload failed: %w", err)
	}
	return s.objectURL(key), nil
}

func (s *SnapshotStore) objectURL(key string) string {
	if s.publicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}
