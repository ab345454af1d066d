// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package coldstore implements the Cold Store Client of SPEC_FULL.md §4
// (object-store PUT/GET/DELETE of opaque block payloads), grounded in the
// project's existing S3 parquet target.
package coldstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/time/rate"

	"github.com/inflowmetrics/historian/internal/config"
)

// Client is the Cold Store Client: S3-compatible PUT/GET/DELETE of opaque
// block payloads, addressed by the deterministic key
// "{sensor_id}/{anchor_ts}.bin" (SPEC_FULL.md §4.4, §6). It is cheap to
// copy by value concern only through its pointer receiver methods; the
// underlying *s3.Client is itself safe for concurrent use (§5, "the
// cold-store client is cheaply cloneable").
type Client struct {
	api     *s3.Client
	bucket  string
	limiter *rate.Limiter
}

// New builds a Client from the cold-store section of the process config.
// Path-style addressing is used per §6.
func New(cfg *config.Config) (*Client, error) {
	if cfg.ColdBucket == "" {
		return nil, fmt.Errorf("coldstore: empty bucket name")
	}

	region := cfg.ColdRegion
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.ColdAccessKey, cfg.ColdSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("coldstore: load AWS config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.ColdEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.ColdEndpoint)
		}
		o.UsePathStyle = cfg.ColdPathStyle
	})

	limit := cfg.TieringUploadRPS
	if limit <= 0 {
		limit = 50
	}

	return &Client{
		api:     api,
		bucket:  cfg.ColdBucket,
		limiter: rate.NewLimiter(rate.Limit(limit), int(limit)+1),
	}, nil
}

// Key builds the deterministic object key "{sensor_id}/{anchor_ts}.bin"
// from §4.4/§6. Deterministic so a retried upload after a partial tiering
// failure overwrites the same object rather than duplicating it.
func Key(sensorID string, anchorTs int64) string {
	return fmt.Sprintf("%s/%d.bin", sensorID, anchorTs)
}

// Put uploads payload under key, rate-limited so a large tiering backlog
// cannot saturate the object store connection pool. The AWS SDK already
// surfaces any non-2xx response as err, which this package treats as the
// Go-idiomatic equivalent of "a PUT is considered successful only on HTTP
// 200" (§6).
func (c *Client) Put(ctx context.Context, key string, payload []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("coldstore: rate limit wait: %w", err)
	}
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("coldstore: put %q: %w", key, err)
	}
	return nil
}

// ErrNotFound is returned by Get when the object does not exist.
var ErrNotFound = errors.New("coldstore: object not found")

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("coldstore: get %q: %w", key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("coldstore: read body %q: %w", key, err)
	}
	return payload, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("coldstore: delete %q: %w", key, err)
	}
	return nil
}
