package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// s3API is the subset of the S3 client used by S3Ingest, extracted so tests
// can substitute it.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Ingest uploads payloads to an S3 bucket using the AWS SDK.
type S3Ingest struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Ingest creates an S3-backed ingest transport. Credentials come from
// the default AWS credential chain.
func NewS3Ingest(ctx context.Context, bucket, prefix, region string) (*S3Ingest, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Ingest{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// NewS3IngestWithClient creates an S3Ingest around an existing client.
func NewS3IngestWithClient(client s3API, bucket, prefix string) *S3Ingest {
	return &S3Ingest{client: client, bucket: bucket, prefix: prefix}
}

// Send implements Ingest.
func (t *S3Ingest) Send(ctx context.Context, req *SendRequest) error {
	body := newProgressReader(req.Body, req.Size, req.OnProgress)
	key := path.Join(t.prefix, req.Name)

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(key),
		Body:          readerOnly{body},
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.Size),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			return &TransferError{
				Errors: []ErrorDetail{{Message: apiErr.ErrorMessage()}},
			}
		}
		return fmt.Errorf("uploading to s3://%s/%s: %w", t.bucket, key, err)
	}
	return nil
}

// readerOnly hides Seek from the SDK so progress is counted exactly once.
// The SDK rewinds seekable bodies on retry, which would double-count bytes.
type readerOnly struct {
	r io.Reader
}

func (r readerOnly) Read(p []byte) (int, error) { return r.r.Read(p) }
