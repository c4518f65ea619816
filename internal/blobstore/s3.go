// server/internal/blobstore/s3.go
package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"spotmytrash-api-server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
)

// S3API is the part of the AWS client the store calls.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type S3 struct {
	Client           S3API
	Bucket           string
	Region           string
	CloudFrontDomain string
}

// NewS3 builds a store from static credentials. Empty credentials fall back to
// the default AWS provider chain.
func NewS3(cfg config.S3Config) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	sdkConfig, err := awsconfig.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, eris.Wrap(err, "blobstore: load AWS config")
	}

	return &S3{
		Client:           s3.NewFromConfig(sdkConfig),
		Bucket:           cfg.Bucket,
		Region:           cfg.Region,
		CloudFrontDomain: cfg.CloudFrontDomain,
	}, nil
}

// Upload puts the photo under path.
func (u *S3) Upload(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.Bucket),
		Key:           aws.String(path),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return eris.Wrapf(err, "blobstore: put s3://%s/%s", u.Bucket, path)
	}
	return nil
}

// URL prefers the CloudFront domain and falls back to the bucket's virtual-hosted URL.
func (u *S3) URL(_ context.Context, path string) (string, error) {
	key := strings.TrimPrefix(path, "/")
	if u.CloudFrontDomain != "" {
		return fmt.Sprintf("https://%s/%s", u.CloudFrontDomain, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, key), nil
}

func (u *S3) Ping(ctx context.Context) error {
	if _, err := u.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.Bucket)}); err != nil {
		return eris.Wrapf(err, "blobstore: head bucket %s", u.Bucket)
	}
	return nil
}
