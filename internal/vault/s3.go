package vault

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"dbrevert/internal/revert"
)

// S3Vault stores archives in an S3 bucket. Uploads go through the manager
// uploader so large database archives are sent multipart without buffering
// in memory.
type S3Vault struct {
	name     string
	bucket   string
	prefix   string
	client   *s3.Client
	uploader *manager.Uploader
}

// NewS3Vault creates a vault backed by the given bucket. When accessKey is
// empty the SDK's default credential chain is used; otherwise the static
// key pair from configuration takes precedence.
func NewS3Vault(name, bucket, prefix, region, accessKey, secretKey string) (*S3Vault, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Vault{
		name:     name,
		bucket:   bucket,
		prefix:   strings.TrimSuffix(prefix, "/"),
		client:   client,
		uploader: manager.NewUploader(client),
	}, nil
}

// objectKey prepends the configured prefix to an archive key.
func (v *S3Vault) objectKey(key string) string {
	if v.prefix == "" {
		return key
	}
	return v.prefix + "/" + key
}

// PutArchive uploads an archive under the given key.
func (v *S3Vault) PutArchive(key string, r io.Reader, size int64) error {
	_, err := v.uploader.Upload(context.Background(), &s3.PutObjectInput{
		Bucket:        aws.String(v.bucket),
		Key:           aws.String(v.objectKey(key)),
		Body:          r,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading archive %s: %w", key, err)
	}
	return nil
}

// GetArchive downloads an archive by key and writes it to w.
func (v *S3Vault) GetArchive(key string, w io.Writer) error {
	out, err := v.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(v.bucket),
		Key:    aws.String(v.objectKey(key)),
	})
	if err != nil {
		return fmt.Errorf("fetching archive %s: %w", key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("reading archive %s: %w", key, err)
	}
	return nil
}

// ListArchives returns the keys stored under the given prefix, in the
// bucket's listing order.
func (v *S3Vault) ListArchives(prefix string) ([]string, error) {
	full := v.objectKey(prefix)
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(v.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(v.bucket),
		Prefix: aws.String(full),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(context.Background())
		if err != nil {
			return nil, fmt.Errorf("listing archives: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if v.prefix != "" {
				key = strings.TrimPrefix(key, v.prefix+"/")
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// ValidateSetup verifies the bucket is reachable with the configured
// credentials.
func (v *S3Vault) ValidateSetup() error {
	_, err := v.client.HeadBucket(context.Background(), &s3.HeadBucketInput{
		Bucket: aws.String(v.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s not accessible: %w", v.bucket, err)
	}
	return nil
}

// Compile-time check that S3Vault implements revert.Vault.
var _ revert.Vault = (*S3Vault)(nil)
