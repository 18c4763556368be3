// Package storage uploads canvas images to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	DefaultBucket = "canvas-uploads"
	DefaultRegion = "us-east-1"

	objectSuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	objectSuffixLength   = 11
)

var ErrNotConfigured = errors.New("object storage is not configured")

type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// PublicURL overrides the base of returned object URLs, e.g. a CDN.
	PublicURL string
	PathStyle bool
}

// ObjectAPI is the part of the S3 client the uploader uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

type S3Uploader struct {
	client     ObjectAPI
	bucket     string
	region     string
	endpoint   *url.URL
	pathStyle  bool
	publicBase string
}

func NewS3Uploader(opts Options) (*S3Uploader, error) {
	accessKey := strings.TrimSpace(opts.AccessKeyID)
	secretKey := strings.TrimSpace(opts.SecretAccessKey)
	if accessKey == "" || secretKey == "" {
		return nil, ErrNotConfigured
	}

	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = DefaultRegion
	}
	endpoint := strings.TrimSuffix(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://s3.%s.amazonaws.com", region)
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid s3 endpoint: %s", endpoint)
	}

	// Custom endpoints (MinIO, R2, Supabase) are addressed path style.
	pathStyle := opts.PathStyle || strings.TrimSpace(opts.Endpoint) != ""

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: pathStyle,
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	})

	return newUploader(client, opts, region, parsed, pathStyle), nil
}

func newUploader(client ObjectAPI, opts Options, region string, endpoint *url.URL, pathStyle bool) *S3Uploader {
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &S3Uploader{
		client:     client,
		bucket:     bucket,
		region:     region,
		endpoint:   endpoint,
		pathStyle:  pathStyle,
		publicBase: strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"),
	}
}

// EnsureBucket creates the upload bucket when it does not exist yet.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	if _, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)}); err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(u.bucket)}
	if u.region != DefaultRegion {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(u.region),
		}
	}
	if _, err := u.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", u.bucket, err)
	}
	return nil
}

// Upload stores data under objectKey and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	key := strings.TrimPrefix(strings.TrimSpace(objectKey), "/")
	if key == "" {
		return "", errors.New("invalid object key")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return u.PublicURL(key), nil
}

func (u *S3Uploader) PublicURL(key string) string {
	escaped := escapeKey(key)
	if u.publicBase != "" {
		return u.publicBase + "/" + escaped
	}
	base := *u.endpoint
	if u.pathStyle {
		return strings.TrimSuffix(base.String(), "/") + "/" + u.bucket + "/" + escaped
	}
	base.Host = u.bucket + "." + base.Host
	return strings.TrimSuffix(base.String(), "/") + "/" + escaped
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ObjectKey names an upload as <unix ms>-<random>.png.
func ObjectKey(now time.Time) (string, error) {
	suffix, err := gonanoid.Generate(objectSuffixAlphabet, objectSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s.png", now.UnixMilli(), suffix), nil
}
