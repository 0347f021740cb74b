package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"dpp-certification/internal/config"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Store keeps documents in a private bucket and hands out presigned URLs
type S3Store struct {
	client        *s3.S3
	bucket        string
	presignExpiry time.Duration
}

func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires AWS_S3_BUCKET")
	}

	awsCfg := &aws.Config{
		Region: aws.String(cfg.AWSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AWSAccessKeyID, cfg.AWSSecretKey, "")
	}
	if cfg.S3Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.S3Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &S3Store{
		client:        s3.New(sess),
		bucket:        cfg.S3Bucket,
		presignExpiry: expiry,
	}, nil
}

func (s *S3Store) Store(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	seeker, ok := body.(io.ReadSeeker)
	if !ok {
		return "", fmt.Errorf("s3 upload requires a seekable body")
	}

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          seeker,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	return key, nil
}

func (s *S3Store) PublicURL(ctx context.Context, filePath string) (string, error) {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filePath),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && (aerr.Code() == "NotFound" || aerr.Code() == s3.ErrCodeNoSuchKey) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("failed to inspect S3 object: %w", err)
	}

	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filePath),
	})
	url, err := req.Presign(s.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}
	return url, nil
}

func (s *S3Store) Delete(ctx context.Context, filePath string) error {
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filePath),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}
