package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"portal/internal/config"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type s3ClientOptions struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ForcePathStyle  bool
}

// remoteS3Storage 同时服务 S3 与 R2
type remoteS3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func (s *remoteS3Storage) Save(ctx context.Context, data []byte, opts SaveOptions) (string, error) {
	return saveObject(ctx, s, s.prefix, data, opts)
}

func (s *remoteS3Storage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentTypeFor(key, contentType)),
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (s *remoteS3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (s *remoteS3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *remoteS3Storage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object: %w", err)
}

var _ Storage = (*remoteS3Storage)(nil)

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := strings.ToLower(apiErr.ErrorCode())
		if code == "notfound" || code == "nosuchkey" || code == "404" {
			return true
		}
	}
	if strings.Contains(strings.ToLower(err.Error()), "status code: 404") {
		return true
	}
	return false
}

// s3Target 一个 S3 兼容后端所需的全部参数
type s3Target struct {
	client s3ClientOptions
	bucket string
	prefix string
}

func s3TargetFromConfig(cfg config.Config) (s3Target, error) {
	t := s3Target{
		client: s3ClientOptions{
			Region:          strings.TrimSpace(cfg.StorageS3Region),
			Endpoint:        strings.TrimSpace(cfg.StorageS3Endpoint),
			AccessKeyID:     strings.TrimSpace(cfg.StorageS3AccessKeyID),
			SecretAccessKey: strings.TrimSpace(cfg.StorageS3SecretAccessKey),
			SessionToken:    strings.TrimSpace(cfg.StorageS3SessionToken),
			ForcePathStyle:  cfg.StorageS3ForcePathStyle,
		},
		bucket: strings.TrimSpace(cfg.StorageS3Bucket),
		prefix: cleanPrefix(cfg.StorageS3Prefix),
	}
	if t.bucket == "" {
		return t, errors.New("storage: missing S3 bucket")
	}
	return t, nil
}

// r2TargetFromConfig 未配置 endpoint 时由账号 ID 推导；R2 只支持 path-style
func r2TargetFromConfig(cfg config.Config) (s3Target, error) {
	t := s3Target{
		client: s3ClientOptions{
			Region:          strings.TrimSpace(cfg.StorageR2Region),
			Endpoint:        strings.TrimSpace(cfg.StorageR2Endpoint),
			AccessKeyID:     strings.TrimSpace(cfg.StorageR2AccessKeyID),
			SecretAccessKey: strings.TrimSpace(cfg.StorageR2SecretAccessKey),
			ForcePathStyle:  true,
		},
		bucket: strings.TrimSpace(cfg.StorageR2Bucket),
		prefix: cleanPrefix(cfg.StorageR2Prefix),
	}
	if t.bucket == "" {
		return t, errors.New("storage: missing R2 bucket")
	}
	if t.client.Region == "" {
		t.client.Region = "auto"
	}
	if t.client.Endpoint == "" {
		accountID := strings.TrimSpace(cfg.StorageR2AccountID)
		if accountID == "" {
			return t, errors.New("storage: missing R2 endpoint or account id")
		}
		t.client.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}
	return t, nil
}

func newRemoteS3Storage(t s3Target) (*remoteS3Storage, error) {
	client, err := newS3Client(t.client)
	if err != nil {
		return nil, err
	}
	return &remoteS3Storage{client: client, bucket: t.bucket, prefix: t.prefix}, nil
}

func NewS3Storage(cfg config.Config) (Storage, error) {
	t, err := s3TargetFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newRemoteS3Storage(t)
}

func NewR2Storage(cfg config.Config) (Storage, error) {
	t, err := r2TargetFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newRemoteS3Storage(t)
}

func newS3Client(opts s3ClientOptions) (*s3.Client, error) {
	if opts.Region == "" {
		return nil, errors.New("storage: missing S3 region")
	}
	if opts.AccessKeyID == "" || opts.SecretAccessKey == "" {
		return nil, errors.New("storage: missing S3 credentials")
	}

	endpoint := opts.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	awsCfg := aws.Config{
		Region: opts.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, opts.SessionToken),
		),
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = opts.ForcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
