// Package s3 provides avatar object storage over any S3-compatible backend.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "docs_syncer/internal/config"
)

// ObjectStorage mints time-limited signed URLs for private objects and
// builds public URLs as a fallback.
type ObjectStorage struct {
	presignClient *s3.PresignClient
	bucket        string
	publicBaseURL string
	logger        *slog.Logger
}

// New creates avatar object storage from configuration. It works with
// AWS S3 or any S3-compatible backend (MinIO etc.) via a custom endpoint.
func New(ctx context.Context, cfg appconfig.StorageConfig, logger *slog.Logger) (*ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage credentials are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return &ObjectStorage{
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		logger:        logger.With("component", "object_storage"),
	}, nil
}

// SignedURL returns a presigned GET URL for the object, valid for expires.
func (s *ObjectStorage) SignedURL(ctx context.Context, objectKey string, expires time.Duration) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key is required")
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}

	return req.URL, nil
}

// PublicURL returns the unauthenticated URL for the object, or "" when
// no public base is configured.
func (s *ObjectStorage) PublicURL(objectKey string) string {
	if s.publicBaseURL == "" || objectKey == "" {
		return ""
	}
	return s.publicBaseURL + "/" + s.bucket + "/" + objectKey
}
