// Package storage talks to the S3-compatible bucket holding product images,
// store branding and proof-of-purchase uploads.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/apperr"
)

// PresignExpiry bounds how long a signed proof upload URL stays valid.
const PresignExpiry = 15 * time.Minute

// API is the subset of the S3 client the store uses.
type API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error)
}

// PresignedRequest is what a client needs to upload directly to the bucket.
type PresignedRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

type Bucket struct {
	api        API
	presigner  Presigner
	bucket     string
	publicBase string
}

// NewBucket serves public URLs from publicBase; when empty the virtual-hosted
// S3 URL is used.
func NewBucket(client *s3.Client, bucket, region, publicBase string) *Bucket {
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &Bucket{
		api:        client,
		presigner:  sdkPresigner{s3.NewPresignClient(client)},
		bucket:     bucket,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// Open builds a bucket from the default AWS credential chain. A custom
// endpoint switches to path-style addressing for S3-compatible servers.
func Open(ctx context.Context, cfg config.StorageConfig) (*Bucket, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewBucket(client, cfg.Bucket, cfg.Region, cfg.PublicBaseURL), nil
}

// NewBucketWith is used by tests and by alternative S3 implementations.
func NewBucketWith(api API, presigner Presigner, bucket, publicBase string) *Bucket {
	return &Bucket{api: api, presigner: presigner, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}
}

func (b *Bucket) PublicURL(key string) string {
	return b.publicBase + "/" + (&url.URL{Path: key}).EscapedPath()
}

// KeyFromURL returns the object key behind a URL built by PublicURL.
func (b *Bucket) KeyFromURL(raw string) (string, bool) {
	prefix := b.publicBase + "/"
	if !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimPrefix(raw, prefix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// Put stores body under key and returns its public URL.
func (b *Bucket) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if _, err := b.api.PutObject(ctx, in); err != nil {
		return "", &apperr.UploadError{Key: key, Err: err}
	}
	return b.PublicURL(key), nil
}

func (b *Bucket) Delete(ctx context.Context, key string) error {
	_, err := b.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &apperr.UploadError{Key: key, Err: err}
	}
	return nil
}

// PresignUpload returns a signed PUT request so the browser can upload a
// proof of purchase without routing the file through the API.
func (b *Bucket) PresignUpload(ctx context.Context, key string) (*PresignedRequest, string, error) {
	req, err := b.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(PresignExpiry))
	if err != nil {
		return nil, "", &apperr.UploadError{Key: key, Err: err}
	}
	return req, b.PublicURL(key), nil
}

type sdkPresigner struct {
	client *s3.PresignClient
}

func (p sdkPresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*PresignedRequest, error) {
	req, err := p.client.PresignPutObject(ctx, in, optFns...)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, Headers: headers}, nil
}
