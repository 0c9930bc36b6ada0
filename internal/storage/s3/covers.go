// Package s3 stores book cover images in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/bookshelf/internal/domain/book"
)

// Config selects the bucket and how objects are addressed.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// PublicBaseURL prefixes object keys in returned URLs. Defaults to
	// Endpoint/Bucket.
	PublicBaseURL string
	AccessKey     string
	SecretKey     string
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

var _ book.CoverStore = (*CoverStore)(nil)

// CoverStore uploads covers under covers/<book id>/.
type CoverStore struct {
	client  *s3.Client
	bucket  string
	baseURL string
}

// NewCoverStore builds an S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewCoverStore(ctx context.Context, cfg Config) (*CoverStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("cover bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := strings.TrimRight(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
		}
	}

	return &CoverStore{client: client, bucket: cfg.Bucket, baseURL: baseURL}, nil
}

// PutCover uploads body and returns its public URL. Only JPEG, PNG and WebP
// images are accepted.
func (s *CoverStore) PutCover(ctx context.Context, bookID, contentType string, body io.Reader, size int64) (string, error) {
	ext, ok := extensions[strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))]
	if !ok {
		return "", &book.InvalidInputError{Field: "cover", Reason: "must be a JPEG, PNG or WebP image"}
	}

	key := fmt.Sprintf("covers/%s/%s%s", bookID, uuid.NewString(), ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading cover for book %q: %w", bookID, err)
	}
	return s.baseURL + "/" + key, nil
}
