package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

// ObjectPutter is the subset of the S3 API used by S3Store.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes assets to an S3 or S3-compatible bucket.
type S3Store struct {
	client  ObjectPutter
	bucket  string
	baseURL string
}

var _ ports.AssetStore = (*S3Store)(nil)

// NewS3Store loads AWS credentials from the default chain.
func NewS3Store(ctx context.Context, cfg Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 asset store requires a bucket")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		baseURL = defaultS3BaseURL(cfg.Bucket, awsCfg.Region, cfg.Endpoint, cfg.PathStyle)
	}

	return NewS3StoreWithClient(client, cfg.Bucket, baseURL), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client ObjectPutter, bucket, baseURL string) *S3Store {
	return &S3Store{client: client, bucket: bucket, baseURL: baseURL}
}

func defaultS3BaseURL(bucket, region, endpoint string, pathStyle bool) string {
	switch {
	case endpoint != "":
		return endpoint + "/" + bucket
	case pathStyle:
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s", region, bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
}

func (s *S3Store) Store(ctx context.Context, ownerID string, data []byte) (*domain.StoredAsset, error) {
	key := NewKey(ownerID)

	// If-None-Match: * makes the put conditional on the key being absent.
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(ContentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return nil, domain.ErrStorageWrite(fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err))
	}

	return &domain.StoredAsset{Key: key, URL: publicURL(s.baseURL, key)}, nil
}
