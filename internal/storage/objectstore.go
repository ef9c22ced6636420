package storage

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
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/osinto/casefile/internal/logging"
)

// Config holds connection settings for the S3-compatible object store.
type Config struct {
	EndpointURL  string
	AccessKey    string
	SecretKey    string
	Region       string
	BucketPrefix string
	Secure       bool
}

// DefaultConfig returns settings for a local RustFS/MinIO instance.
func DefaultConfig() Config {
	return Config{
		EndpointURL:  "http://localhost:9000",
		AccessKey:    "rustfsadmin",
		SecretKey:    "rustfsadmin",
		Region:       "us-east-1",
		BucketPrefix: "documents",
	}
}

// ObjectStore persists raw uploaded documents in per-investigation buckets.
// It implements lifecycle.Component: the S3 client is built on Start.
type ObjectStore struct {
	cfg    Config
	client *s3.Client
	logger *logging.Logger
}

// NewObjectStore creates an object store. Call Start before using it.
func NewObjectStore(cfg Config) *ObjectStore {
	return &ObjectStore{
		cfg:    cfg,
		logger: logging.GetLogger("storage"),
	}
}

// Start implements lifecycle.Component. It builds the S3 client; buckets are
// created lazily on first upload.
func (o *ObjectStore) Start(ctx context.Context) error {
	secret := o.cfg.SecretKey
	if secret == "" {
		secret = o.cfg.AccessKey
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(o.cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.cfg.AccessKey, secret, "")),
	)
	if err != nil {
		return fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	o.client = s3.NewFromConfig(awsCfg, func(opts *s3.Options) {
		if o.cfg.EndpointURL != "" {
			opts.BaseEndpoint = aws.String(o.cfg.EndpointURL)
		}
		// RustFS and MinIO do not support virtual-hosted-style addressing.
		opts.UsePathStyle = true
	})

	o.logger.Info("Object store ready (endpoint: %s, bucket prefix: %s)",
		o.cfg.EndpointURL, o.cfg.BucketPrefix)
	return nil
}

// Stop implements lifecycle.Component.
func (o *ObjectStore) Stop(ctx context.Context) error {
	o.client = nil
	return nil
}

// Name implements lifecycle.Component.
func (o *ObjectStore) Name() string {
	return "Object Store"
}

// Bucket returns the bucket name used for an investigation.
func (o *ObjectStore) Bucket(investigationID string) string {
	return BucketName(o.cfg.BucketPrefix, investigationID)
}

// ObjectURL returns a stable URI-like path recorded as document provenance.
func (o *ObjectStore) ObjectURL(investigationID, key string) string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket(investigationID), key)
}

// EnsureBucket creates the investigation bucket if it does not exist yet and
// returns its name.
func (o *ObjectStore) EnsureBucket(ctx context.Context, investigationID string) (string, error) {
	if o.client == nil {
		return "", errors.New("object store not started")
	}
	bucket := o.Bucket(investigationID)

	_, err := o.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return bucket, nil
	}
	if !isMissingBucket(err) {
		return "", fmt.Errorf("failed to probe bucket %s: %w", bucket, err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if o.cfg.Region != "" && o.cfg.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(o.cfg.Region),
		}
	}

	if _, err := o.client.CreateBucket(ctx, input); err != nil {
		// Concurrent creation is fine, the bucket exists either way.
		if hasErrorCode(err, "BucketAlreadyOwnedByYou", "BucketAlreadyExists") {
			return bucket, nil
		}
		return "", fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}

	o.logger.Info("Created bucket %s for investigation %s", bucket, investigationID)
	return bucket, nil
}

// Upload stores file bytes under "<documentID>/<filename>" and returns the
// object key.
func (o *ObjectStore) Upload(ctx context.Context, investigationID, documentID, filename string, content []byte, contentType string) (string, error) {
	bucket, err := o.EnsureBucket(ctx, investigationID)
	if err != nil {
		return "", err
	}

	safeFilename := filename
	if safeFilename == "" {
		safeFilename = "upload.bin"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := documentID + "/" + safeFilename

	_, err = o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"investigation_id": investigationID,
			"document_id":      documentID,
			"filename":         safeFilename,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to bucket %s: %w", key, bucket, err)
	}

	o.logger.Debug("Uploaded %d bytes to %s/%s", len(content), bucket, key)
	return key, nil
}

// Download fetches file bytes by object key.
func (o *ObjectStore) Download(ctx context.Context, investigationID, key string) ([]byte, error) {
	if o.client == nil {
		return nil, errors.New("object store not started")
	}
	bucket := o.Bucket(investigationID)

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s from bucket %s: %w", key, bucket, err)
	}
	defer out.Body.Close()

	content, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return content, nil
}

// DeleteBucket removes all objects in the investigation bucket and then the
// bucket itself. A bucket that never existed is not an error.
func (o *ObjectStore) DeleteBucket(ctx context.Context, investigationID string) error {
	if o.client == nil {
		return errors.New("object store not started")
	}
	bucket := o.Bucket(investigationID)

	paginator := s3.NewListObjectsV2Paginator(o.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isMissingBucket(err) {
				return nil
			}
			return fmt.Errorf("failed to list bucket %s: %w", bucket, err)
		}
		for _, obj := range page.Contents {
			_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return fmt.Errorf("failed to delete object %s: %w", aws.ToString(obj.Key), err)
			}
		}
	}

	if _, err := o.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if isMissingBucket(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}

	o.logger.Info("Deleted bucket %s", bucket)
	return nil
}

// isMissingBucket reports whether err indicates the bucket does not exist.
// Some S3-compatible providers answer 403 instead of 404 for missing buckets.
func isMissingBucket(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &noSuchBucket) {
		return true
	}
	return hasErrorCode(err, "403", "404", "NoSuchBucket", "NotFound", "AccessDenied")
}

func hasErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, code := range codes {
		if apiErr.ErrorCode() == code {
			return true
		}
	}
	return false
}
