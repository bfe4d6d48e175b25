// Package avatars uploads team avatars to S3-compatible object storage.
package avatars

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxSize is the largest avatar accepted, in bytes.
const MaxSize = 2 << 20

var allowedTypes = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// Store saves an avatar image and returns its public URL.
type Store interface {
	Upload(ctx context.Context, publicID string, data []byte) (string, error)
}

// PutObjectAPI is the part of the S3 client used by S3Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config describes the bucket. Endpoint is empty for AWS itself and set for
// other S3-compatible providers (R2, MinIO).
type Config struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// S3Store uploads avatars to a bucket.
type S3Store struct {
	client  PutObjectAPI
	bucket  string
	baseURL string
}

// NewS3Store wraps an existing client.
func NewS3Store(client PutObjectAPI, bucket, publicBaseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, baseURL: strings.TrimRight(publicBaseURL, "/")}
}

// New builds an S3 client from cfg.
func New(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("avatar bucket not configured")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}
	return NewS3Store(client, cfg.Bucket, baseURL), nil
}

// Upload stores the image under avatars/<publicID>.<ext>.
func (s *S3Store) Upload(ctx context.Context, publicID string, data []byte) (string, error) {
	contentType, ext, err := Detect(data)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("avatars/%s.%s", publicID, ext)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	return s.baseURL + "/" + key, nil
}

// Detect sniffs the image type and rejects anything that is not a
// supported image or is too large.
func Detect(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("empty avatar")
	}
	if len(data) > MaxSize {
		return "", "", fmt.Errorf("avatar exceeds %d bytes", MaxSize)
	}
	contentType = http.DetectContentType(data)
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", "", fmt.Errorf("unsupported avatar type %s", contentType)
	}
	return contentType, ext, nil
}

// Nop is used when no bucket is configured.
type Nop struct{}

// Upload always fails; callers treat avatar failures as non-fatal.
func (Nop) Upload(context.Context, string, []byte) (string, error) {
	return "", fmt.Errorf("avatar storage not configured")
}

var (
	_ Store = (*S3Store)(nil)
	_ Store = Nop{}
)
