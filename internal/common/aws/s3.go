package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"invoice-workers/internal/common/config"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// S3API is the subset of *s3.Client used here.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object is a fetched object with its body fully read.
type Object struct {
	Key          string
	Body         []byte
	ETag         string
	ContentType  string
	LastModified time.Time
}

// ObjectInfo describes an object without its body.
type ObjectInfo struct {
	Key          string
	ETag         string
	LastModified time.Time
}

// S3Client reads and writes objects in a single bucket. It works against
// AWS S3 and S3-compatible stores (MinIO, LocalStack) through Endpoint.
type S3Client struct {
	api    S3API
	bucket string
}

// NewS3Client builds a client from storage configuration.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*S3Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	awsCfg, err := LoadConfig(ctx, cfg.Region, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, err
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
		}
	})
	return NewS3ClientFromAPI(client, cfg.Bucket), nil
}

// NewS3ClientFromAPI wraps an existing API implementation.
func NewS3ClientFromAPI(api S3API, bucket string) *S3Client {
	return &S3Client{api: api, bucket: bucket}
}

func (c *S3Client) Bucket() string {
	return c.bucket
}

// Get fetches key and reads its body.
func (c *S3Client) Get(ctx context.Context, key string) (*Object, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awssdk.String(c.bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, c.bucket, key)
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", c.bucket, key, err)
	}

	return &Object{
		Key:          key,
		Body:         body,
		ETag:         strings.Trim(awssdk.ToString(out.ETag), `"`),
		ContentType:  awssdk.ToString(out.ContentType),
		LastModified: awssdk.ToTime(out.LastModified),
	}, nil
}

// Head returns metadata for key.
func (c *S3Client) Head(ctx context.Context, key string) (*ObjectInfo, error) {
	out, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: awssdk.String(c.bucket),
		Key:    awssdk.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, c.bucket, key)
		}
		return nil, fmt.Errorf("failed to head s3://%s/%s: %w", c.bucket, key, err)
	}
	return &ObjectInfo{
		Key:          key,
		ETag:         strings.Trim(awssdk.ToString(out.ETag), `"`),
		LastModified: awssdk.ToTime(out.LastModified),
	}, nil
}

// Put stores body under key.
func (c *S3Client) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awssdk.String(c.bucket),
		Key:         awssdk.String(key),
		Body:        bytes.NewReader(body),
		ContentType: awssdk.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// List returns every object under prefix, oldest first.
func (c *S3Client) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: awssdk.String(c.bucket),
		Prefix: awssdk.String(prefix),
	})

	var out []ObjectInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", c.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			out = append(out, ObjectInfo{
				Key:          awssdk.ToString(obj.Key),
				ETag:         strings.Trim(awssdk.ToString(obj.ETag), `"`),
				LastModified: awssdk.ToTime(obj.LastModified),
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastModified.Before(out[j].LastModified)
	})
	return out, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
