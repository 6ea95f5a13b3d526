package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/rs/zerolog/log"
)

// S3Store uploads blobs to an S3 bucket.
type S3Store struct {
	uploader *s3manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store creates an uploader for the configured bucket.
func NewS3Store(cfg Config) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires a bucket")
	}

	awsConfig := &aws.Config{
		Region: aws.String(cfg.S3Region),
	}

	// For S3 compatible services such as MinIO
	if cfg.S3Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.S3Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		uploader: s3manager.NewUploader(sess),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

// WriteBlob uploads data and returns an s3:// reference.
func (s *S3Store) WriteBlob(ctx context.Context, data []byte, dest string) (string, error) {
	rel, err := cleanDest(dest)
	if err != nil {
		return "", err
	}
	key := rel
	if s.prefix != "" {
		key = path.Join(s.prefix, rel)
	}

	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(http.DetectContentType(data)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Debug().Str("bucket", s.bucket).Str("key", key).Str("location", out.Location).Msg("Blob uploaded")
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
