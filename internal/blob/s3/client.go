// Package s3blob stores archived market events in S3 or an S3-compatible
// provider (MinIO, R2, iDrive e2) through AWS SDK v2.
package s3blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds connection settings. Endpoint is empty for AWS itself.
type ClientConfig struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	ForcePathStyle bool
}

// Client wraps the SDK client together with the bucket every call uses.
type Client struct {
	s3     *s3.Client
	bucket string
}

func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3blob: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normaliseEndpoint(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// Health issues HeadBucket.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)}); err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) Bucket() string { return c.bucket }

// normaliseEndpoint adds a scheme when the endpoint has none. host:port
// parses as an opaque URL, so the check is on Host rather than Scheme.
func normaliseEndpoint(endpoint string, useSSL bool) string {
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}
