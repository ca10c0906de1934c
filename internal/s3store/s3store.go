// Package s3store reads wide exports from and writes long tables to S3.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Scheme is the URI prefix that routes a path to S3.
const Scheme = "s3://"

// ErrObjectExists is returned by PutObject when the key is already taken.
var ErrObjectExists = errors.New("object already exists")

// API is the subset of the S3 client used here.
type API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config selects the AWS region and shared-config profile.
type Config struct {
	Region  string
	Profile string
}

// Store fetches and uploads objects.
type Store struct {
	client API
}

// New loads the default AWS credential chain. An empty region falls back to
// AWS_REGION, then us-east-1.
func New(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
		if region == "" {
			region = "us-east-1"
		}
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Store{client: s3.NewFromConfig(awsCfg)}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API) *Store {
	return &Store{client: client}
}

// IsURI reports whether path is an s3:// URI.
func IsURI(path string) bool {
	return strings.HasPrefix(path, Scheme)
}

// ParseURI splits s3://bucket/key into bucket and key. The key may be empty.
func ParseURI(uri string) (bucket, key string, err error) {
	if !IsURI(uri) {
		return "", "", fmt.Errorf("not an s3 URI: %q", uri)
	}
	rest := strings.TrimPrefix(uri, Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 URI has no bucket: %q", uri)
	}
	return bucket, key, nil
}

// GetObject downloads an object in full.
func (s *Store) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// ObjectExists reports whether bucket/key exists.
func (s *Store) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if statusCode(err) == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("failed to check s3://%s/%s: %w", bucket, key, err)
}

// PutObject uploads data under bucket/key. It never replaces an existing
// object: S3 rejects the conditional write and ErrObjectExists is returned.
func (s *Store) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		IfNoneMatch: aws.String("*"),
	})
	if err == nil {
		return nil
	}
	if code := statusCode(err); code == http.StatusPreconditionFailed || code == http.StatusConflict {
		return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, ErrObjectExists)
	}
	return fmt.Errorf("failed to put s3://%s/%s: %w", bucket, key, err)
}

// statusCode returns the HTTP status carried by an SDK error, or 0.
func statusCode(err error) int {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
