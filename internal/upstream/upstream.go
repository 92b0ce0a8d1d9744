// Package upstream adapts an S3-compatible bucket into the narrow read
// surface the gateway needs: list buckets, list objects, and a byte-range
// GET performed under a per-client assumed role.
package upstream

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/xbyte-labs/byte-gateway/internal/rangeheader"
)

// Adapter wraps an *s3.Client configured with temporary credentials for one
// client's assumed role.
type Adapter struct {
	client *s3.Client
}

// NewCredentialed assumes roleARN via STS and returns an Adapter whose
// *s3.Client uses the resulting temporary credentials. sessionName should
// be unique enough to attribute the assumed session to a client in
// CloudTrail (the wallet address is a natural choice).
func NewCredentialed(ctx context.Context, roleARN, sessionName, region string) (*Adapter, error) {
	base, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("upstream: loading base AWS config: %w", err)
	}

	stsClient := sts.NewFromConfig(base)
	provider := stscreds.NewAssumeRoleProvider(stsClient, roleARN, func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})

	cfg := base.Copy()
	cfg.Credentials = aws.NewCredentialsCache(provider)

	return &Adapter{client: s3.NewFromConfig(cfg)}, nil
}

// NewFromClient wraps an already-configured *s3.Client directly, used by
// tests that substitute a fake S3 API.
func NewFromClient(client *s3.Client) *Adapter {
	return &Adapter{client: client}
}

// BucketSummary is the subset of aws-sdk-go-v2's s3.types.Bucket the
// gateway's admin routes expose.
type BucketSummary struct {
	Name string
}

// ObjectSummary is the subset of s3.types.Object the gateway's admin
// routes expose.
type ObjectSummary struct {
	Key  string
	Size int64
}

// ListBuckets lists every bucket visible to the adapter's credentials.
func (a *Adapter) ListBuckets(ctx context.Context) ([]BucketSummary, error) {
	out, err := a.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("upstream: list buckets: %w", err)
	}
	summaries := make([]BucketSummary, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		summaries = append(summaries, BucketSummary{Name: aws.ToString(b.Name)})
	}
	return summaries, nil
}

// ListObjects lists every object in bucket.
func (a *Adapter) ListObjects(ctx context.Context, bucket string) ([]ObjectSummary, error) {
	out, err := a.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	if err != nil {
		return nil, fmt.Errorf("upstream: list objects in %s: %w", bucket, err)
	}
	summaries := make([]ObjectSummary, 0, len(out.Contents))
	for _, o := range out.Contents {
		summaries = append(summaries, ObjectSummary{Key: aws.ToString(o.Key), Size: aws.ToInt64(o.Size)})
	}
	return summaries, nil
}

// GetRange performs a byte-range GET of bucket/key starting at offset for
// length bytes, and returns exactly length bytes or an error - a short read
// from upstream is a failure, never a partial success.
func (a *Adapter) GetRange(ctx context.Context, bucket, key string, offset, length uint64) ([]byte, error) {
	rangeHeader, err := rangeheader.Compute(offset, length)
	if err != nil {
		return nil, fmt.Errorf("upstream: computing range header: %w", err)
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(rangeHeader),
	})
	if err != nil {
		return nil, fmt.Errorf("upstream: get object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	buf := make([]byte, length)
	n, err := io.ReadFull(out.Body, buf)
	if err != nil {
		return nil, fmt.Errorf("upstream: reading range %s/%s: %w", bucket, key, err)
	}
	if uint64(n) != length {
		return nil, fmt.Errorf("upstream: short read from %s/%s: got %d of %d bytes", bucket, key, n, length)
	}
	return buf, nil
}
