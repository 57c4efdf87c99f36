package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/kevinaaaquil/scripture-catalog/apperrors"
)

// CoverPrefix is the key prefix for uploaded cover images.
const CoverPrefix = "covers/"

const coverCacheControl = "public, max-age=86400"

// objectAPI is the part of *s3.Client the cover store calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Service keeps cover images in a single bucket.
type S3Service struct {
	api    objectAPI
	bucket string
}

// NewS3Service connects with static credentials when both are given, otherwise
// with the default AWS credential chain.
func NewS3Service(ctx context.Context, bucket, region, accessKeyID, secretAccessKey string) (*S3Service, error) {
	if bucket == "" {
		return nil, fmt.Errorf("AWS_S3_BUCKET is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Service(s3.NewFromConfig(cfg), bucket), nil
}

func newS3Service(api objectAPI, bucket string) *S3Service {
	return &S3Service{api: api, bucket: bucket}
}

// CoverKey builds a fresh object key for an uploaded cover, keeping the
// original extension.
func CoverKey(filename string) string {
	return CoverPrefix + uuid.New().String() + strings.ToLower(filepath.Ext(filename))
}

// Upload stores body under a new cover key and returns the key.
func (s *S3Service) Upload(ctx context.Context, filename string, body io.Reader, contentType string) (string, error) {
	key := CoverKey(filename)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(coverCacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Delete removes a cover. Deleting a key that does not exist succeeds.
func (s *S3Service) Delete(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetObject returns the object body and content type. Caller must close the
// body. A missing key is NOT_FOUND.
func (s *S3Service) GetObject(ctx context.Context, key string) (io.ReadCloser, string, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, "", apperrors.NotFound("cover object %s not found", key)
		}
		return nil, "", fmt.Errorf("get %s: %w", key, err)
	}
	return out.Body, aws.ToString(out.ContentType), nil
}
