package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"candlekeep/pkg/store"
)

const backend = "s3"

// API is the subset of the S3 client the store uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store persists blobs in an S3-compatible bucket (AWS S3, DigitalOcean Spaces).
type Store struct {
	api    API
	bucket string
}

// New wraps an existing client.
func New(api API, bucket string) (*Store, error) {
	if api == nil {
		return nil, fmt.Errorf("s3store: client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("s3store: bucket is required")
	}
	return &Store{api: api, bucket: bucket}, nil
}

// NewFromConfig builds a client from store configuration. A custom endpoint
// selects Spaces or any other S3-compatible service.
func NewFromConfig(ctx context.Context, cfg store.Config) (*Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return New(client, cfg.Bucket)
}

func init() {
	store.Register(backend, func(cfg store.Config) (store.ObjectStore, error) {
		return NewFromConfig(context.Background(), cfg)
	})
	store.Register("spaces", func(cfg store.Config) (store.ObjectStore, error) {
		if cfg.Endpoint == "" && cfg.Region != "" {
			cfg.Endpoint = fmt.Sprintf("https://%s.digitaloceanspaces.com", cfg.Region)
		}
		return NewFromConfig(context.Background(), cfg)
	})
}

// Get downloads the object body.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, store.Wrap(backend, "get", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	return data, store.Wrap(backend, "get", key, err)
}

// Put uploads data as a single object; S3 replaces objects atomically.
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/csv"),
	})
	return store.Wrap(backend, "put", key, err)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
