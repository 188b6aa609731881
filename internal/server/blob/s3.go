package blob

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// s3API is the subset of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Settings configures the S3-compatible backend (minio in dev).
type S3Settings struct {
	Region       string
	RootUser     string // MINIO_ROOT_USER
	RootPassword string // MINIO_ROOT_PASSWORD
	BaseEndpoint string
	Bucket       string
	PublicBase   string // URL prefix clients fetch objects from
}

// S3Store implements Store over an S3-compatible service.
type S3Store struct {
	client s3API
	bucket string
	public string
	keygen func() string
}

// NewS3Store builds the client from static credentials and a custom endpoint.
func NewS3Store(ctx context.Context, settings S3Settings) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(settings.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			settings.RootUser,
			settings.RootPassword,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(settings.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &S3Store{
		client: client,
		bucket: settings.Bucket,
		public: strings.TrimSuffix(settings.PublicBase, "/"),
		keygen: newStorageKey,
	}, nil
}

// newStorageKey shards objects by date so buckets stay browsable.
func newStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("blobs/%d/%d/%d/%v", d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *S3Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.keygen()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload blob: %w", err)
	}
	return s.urlFor(key), nil
}

func (s *S3Store) Delete(ctx context.Context, url string) error {
	key, err := s.keyFor(url)
	if err != nil {
		return err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", url, err)
	}
	return nil
}

func (s *S3Store) List(ctx context.Context) ([]ObjectInfo, error) {
	var result []ObjectInfo
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &s.bucket,
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, obj := range out.Contents {
			info := ObjectInfo{URL: s.urlFor(aws.ToString(obj.Key))}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			result = append(result, info)
		}
		if out.NextContinuationToken == nil {
			return result, nil
		}
		token = out.NextContinuationToken
	}
}

func (s *S3Store) urlFor(key string) string {
	return s.public + "/" + key
}

func (s *S3Store) keyFor(url string) (string, error) {
	key := strings.TrimPrefix(url, s.public+"/")
	if key == url || key == "" {
		return "", fmt.Errorf("blob url %q is outside this store", url)
	}
	return key, nil
}
