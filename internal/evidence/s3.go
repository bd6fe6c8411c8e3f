package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the subset of the S3 client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds configuration for S3Store.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
	Prefix   string // Optional key prefix
	SSE      string // Optional server-side encryption, e.g. "AES256" or "aws:kms"
}

// S3Store keeps evidence in an S3 bucket.
type S3Store struct {
	client s3API
	bucket string
	prefix string
	sse    string
}

// NewS3Store creates an S3-backed evidence store using the default AWS
// credential chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 evidence store requires a bucket")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg), nil
}

func newS3Store(client s3API, cfg S3Config) *S3Store {
	return &S3Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, sse: cfg.SSE}
}

// Backend implements Store.
func (s *S3Store) Backend() string { return "s3" }

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, key string, content []byte, mimeType string) (Ref, error) {
	objectKey := s.prefix + key
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
		Metadata:    map[string]string{"digest": Digest(content)},
	}
	if s.sse != "" {
		input.ServerSideEncryption = types.ServerSideEncryption(s.sse)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return Ref{}, fmt.Errorf("s3 put %s: %w", objectKey, err)
	}

	return newRef(key, fmt.Sprintf("s3://%s/%s", s.bucket, objectKey), content, mimeType), nil
}

// Remove implements Store.
func (s *S3Store) Remove(ctx context.Context, keys []string) error {
	var errs []error
	for _, key := range keys {
		objectKey := s.prefix + key
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("s3 delete %s: %w", objectKey, err))
		}
	}
	return errors.Join(errs...)
}
