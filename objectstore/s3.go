// Package objectstore provides core.ObjectReader implementations backed by
// S3 and by a local directory tree.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/goliatone/go-ingest/core"
)

// GetObjectAPI is the subset of the S3 client the reader uses.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Reader struct {
	client GetObjectAPI
}

func NewS3Reader(client GetObjectAPI) (*S3Reader, error) {
	if client == nil {
		return nil, fmt.Errorf("objectstore: s3 client is required")
	}
	return &S3Reader{client: client}, nil
}

// NewS3Client loads the default AWS configuration. A custom endpoint targets
// LocalStack or MinIO and forces path-style addressing.
func NewS3Client(ctx context.Context, cfg core.ObjectsConfig) (*s3.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

func (r *S3Reader) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("objectstore: s3://%s/%s: %w", bucket, key, core.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("objectstore: get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read s3://%s/%s: %w", bucket, key, err)
	}
	return content, nil
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}

var (
	_ core.ObjectReader = (*S3Reader)(nil)
	_ GetObjectAPI      = (*s3.Client)(nil)
)
