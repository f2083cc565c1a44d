package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// BlobRef points at an uploaded object.
type BlobRef struct {
	URL        string
	ObjectName string
}

// BlobStore uploads binary blobs (bike images, purchase receipts).
// Content-type and size limits are enforced at the call site before the
// upload happens.
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType, path string) (*BlobRef, error)
}

// S3BlobStore stores blobs in an S3 bucket.
type S3BlobStore struct {
	client *s3.Client
	bucket string
	region string
	logger *slog.Logger
}

// NewS3BlobStore creates an S3-backed blob store.
func NewS3BlobStore(region, bucket string, logger *slog.Logger) (*S3BlobStore, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3BlobStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		region: region,
		logger: logger,
	}, nil
}

// Upload writes the blob under path with a fresh UUID object name and
// returns its public URL.
func (s *S3BlobStore) Upload(ctx context.Context, data []byte, contentType, path string) (*BlobRef, error) {
	objectName := fmt.Sprintf("%s/%s", path, uuid.New().String())

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.logger.Error("failed to upload blob",
			slog.String("object_name", objectName),
			slog.Any("error", err))
		return nil, fmt.Errorf("failed to upload blob: %w", err)
	}

	return &BlobRef{
		URL:        fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, objectName),
		ObjectName: objectName,
	}, nil
}
