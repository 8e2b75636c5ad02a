// Package s3 stores export artifacts in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/desertthunder/songbook/internal/shared"
)

// Client is the subset of the S3 API the sink uses.
type Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink writes named blobs under bucket/prefix.
type Sink struct {
	client Client
	bucket string
	prefix string
}

// NewSink creates a sink. The prefix may be empty.
func NewSink(client Client, bucket, prefix string) *Sink {
	return &Sink{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// NewClient builds an S3 client from the default credential chain. A non-empty
// endpoint switches to path-style addressing for S3 compatible servers.
func NewClient(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load aws config: %v", shared.ErrInvalidConfig, err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Key returns the object key for name.
func (s *Sink) Key(name string) string {
	name = strings.TrimLeft(name, "/")
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads data as name and returns its s3:// location.
func (s *Sink) Put(ctx context.Context, name string, data []byte) (string, error) {
	key := s.Key(name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		input.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("%w: failed to upload %s: %v", shared.ErrExport, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
