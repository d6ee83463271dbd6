// Package s3 implements the object store on Amazon S3 using the AWS
// SDK v2. Credentials and default region come from the standard AWS
// environment; the uploader handles multipart for large transformed
// files.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"footstats/internal/objectstore"
)

func init() {
	objectstore.Register("s3", func(ctx context.Context, cfg objectstore.Config) (objectstore.Store, error) {
		return New(ctx, cfg.Options)
	})
}

// Store talks to one bucket, optionally under a fixed key prefix so
// several environments can share it.
type Store struct {
	bucket   string
	prefix   string
	client   *awss3.Client
	uploader *manager.Uploader
}

// New builds an S3 store from backend options: bucket (required),
// region, prefix and endpoint (for local S3 stand-ins).
func New(ctx context.Context, opts map[string]string) (*Store, error) {
	bucket := opts["bucket"]
	if bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region := opts["region"]; region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if endpoint := opts["endpoint"]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		bucket:   bucket,
		prefix:   opts["prefix"],
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader) error {
	_, err := s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 store: put %s: %w", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("s3 store: get %s: %w", key, objectstore.ErrNotExist)
		}
		return nil, fmt.Errorf("s3 store: get %s: %w", key, err)
	}
	return out.Body, nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]objectstore.Object, error) {
	paginator := awss3.NewListObjectsV2Paginator(s.client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(prefix)),
	})

	strip := 0
	if s.prefix != "" {
		strip = len(s.prefix) + 1
	}

	var out []objectstore.Object
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 store: list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if len(key) < strip {
				continue
			}
			out = append(out, objectstore.Object{
				Key:          key[strip:],
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		return fmt.Errorf("s3 store: delete %s: %w", key, err)
	}
	return nil
}

var _ objectstore.Store = (*Store)(nil)
