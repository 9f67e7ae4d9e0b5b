package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Adapter serves the managed AWS S3 backend using the ambient AWS
// credential chain.
type S3Adapter struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

func NewS3Adapter(ctx context.Context, region, bucket string) (*S3Adapter, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("aws config error: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Adapter{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
	}, nil
}

func (a *S3Adapter) GenerateUploadURL(ctx context.Context, key, contentType string, ttl time.Duration, metadata map[string]string) (string, error) {
	req, err := a.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign put error: %w", err)
	}
	return req.URL, nil
}

func (a *S3Adapter) GenerateDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign get error: %w", err)
	}
	return req.URL, nil
}

func (a *S3Adapter) DeleteObject(ctx context.Context, key string) error {
	_, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object error: %w", err)
	}
	return nil
}
