package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/streamr/backend/internal/config"
)

// uploader is the subset of manager.Uploader used to mirror cover art.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// CoverStore mirrors movie cover art into an S3-compatible bucket.
type CoverStore struct {
	uploader uploader
	bucket   string
	baseURL  string
}

// NewCoverStore configures an uploader targeting the provided object store.
func NewCoverStore(ctx context.Context, cfg config.ObjectStoreConfig) (*CoverStore, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("cover store: bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	up := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.LeavePartsOnError = false
	})

	return newCoverStore(up, cfg), nil
}

func newCoverStore(up uploader, cfg config.ObjectStoreConfig) *CoverStore {
	return &CoverStore{
		uploader: up,
		bucket:   cfg.Bucket,
		baseURL:  strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}
}

// Save uploads r under name and returns its public location. Without a public
// base URL the bare key is returned.
func (s *CoverStore) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	key := strings.TrimLeft(path.Clean("/"+name), "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("cover store: empty key")
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         r,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=604800"),
		ACL:          s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("cover store upload %s: %w", key, err)
	}

	if s.baseURL == "" {
		return key, nil
	}
	return s.baseURL + "/" + key, nil
}
