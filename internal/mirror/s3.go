package mirror

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"llmspub/internal/pub"
)

// S3Mirror uploads backups to an S3 bucket. Credentials come from the
// standard AWS credential chain (environment, shared config, instance
// role).
type S3Mirror struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// Credentials holds optional static AWS credentials. Zero value falls back
// to the default credential chain.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Mirror creates a mirror targeting the given bucket. An empty region
// defers to the AWS config chain.
func NewS3Mirror(bucket, prefix, region string, creds Credentials) (*S3Mirror, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Mirror{
		bucket:   bucket,
		prefix:   prefix,
		uploader: manager.NewUploader(client),
	}, nil
}

// Put uploads data under the mirror's prefix.
func (m *S3Mirror) Put(ctx context.Context, name string, data []byte) error {
	key := path.Join(m.prefix, path.Base(name))
	_, err := m.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("uploading %s to s3://%s: %w", key, m.bucket, err)
	}
	return nil
}

var _ pub.Archiver = (*S3Mirror)(nil)
