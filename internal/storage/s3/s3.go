package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrUnsupportedType = errors.New("s3: unsupported image type")

// Config describes an S3-compatible bucket (AWS, R2, MinIO).
type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Expires         time.Duration
}

// Covers hands out presigned URLs for book cover objects.
type Covers struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
	expires   time.Duration
}

// New builds a Covers client. Without static keys the default AWS
// credential chain is used.
func New(ctx context.Context, cfg Config) (*Covers, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expires := cfg.Expires
	if expires <= 0 {
		expires = 15 * time.Minute
	}
	return &Covers{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    cfg.Bucket,
		expires:   expires,
	}, nil
}

func (c *Covers) Expires() time.Duration { return c.expires }

// PresignUpload creates a presigned PUT URL for direct upload.
func (c *Covers) PresignUpload(ctx context.Context, objectKey, contentType string) (string, error) {
	req, err := c.Presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(c.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return req.URL, nil
}

// PresignDownload creates a presigned GET URL.
func (c *Covers) PresignDownload(ctx context.Context, objectKey string) (string, error) {
	req, err := c.Presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(c.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign download: %w", err)
	}
	return req.URL, nil
}

// DeleteObject removes an object, used when a cover is replaced.
func (c *Covers) DeleteObject(ctx context.Context, objectKey string) error {
	_, err := c.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("s3: delete object %s: %w", objectKey, err)
	}
	return nil
}

var coverExt = map[string]string{
	"image/webp": ".webp",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

// CoverKey returns a fresh object key for a cover of the given type,
// e.g. books/covers/42/<uuid>.webp.
func CoverKey(bookID int64, contentType string) (string, error) {
	ext, ok := coverExt[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}
	return "books/covers/" + strconv.FormatInt(bookID, 10) + "/" + uuid.NewString() + ext, nil
}
