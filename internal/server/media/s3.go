// Package media stores user-supplied images (message attachments, avatars)
// in an S3-compatible bucket and hands back public URLs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// Store uploads a base64 data URL and returns the stored object's URL.
type Store interface {
	Upload(ctx context.Context, dataURL string) (string, error)
}

// S3Options configures the S3-compatible backend (MinIO in development).
type S3Options struct {
	RootUser     string
	RootPassword string
	Bucket       string
	Region       string
	BaseEndpoint string
}

type S3Store struct {
	opts S3Options
}

func NewS3Store(opts S3Options) *S3Store {
	return &S3Store{opts: opts}
}

func (s *S3Store) client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(s.opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.opts.RootUser,
			s.opts.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.opts.BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

func randomStorageKey(ext string) string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%d/%d/%v%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}

// Upload decodes the data URL, puts the object, and returns its public URL.
func (s *S3Store) Upload(ctx context.Context, dataURL string) (string, error) {
	mimeType, payload, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	client, err := s.client(ctx)
	if err != nil {
		return "", err
	}

	bucket := s.opts.Bucket
	key := randomStorageKey(extensionFor(mimeType))

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(payload),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	return s.objectURL(key), nil
}

func (s *S3Store) objectURL(key string) string {
	base := strings.TrimRight(s.opts.BaseEndpoint, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.opts.Bucket, key)
}
