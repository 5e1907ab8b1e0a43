package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"docharvest/pkg/domain"
)

type S3Options struct {
	Region         string
	Endpoint       string // non-empty for MinIO/localstack
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey override the default credential
	// chain, mainly for custom endpoints that hand out fixed keys.
	AccessKeyID     string
	SecretAccessKey string
}

type s3Uploader struct {
	client *s3.Client
}

// NewS3Uploader builds an uploader on the default AWS credential chain
// (env, shared config, instance role).
func NewS3Uploader(ctx context.Context, opts S3Options) (Uploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, domain.WrapError(domain.KindConfiguration, "load aws config", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.ForcePathStyle
	})
	return &s3Uploader{client: client}, nil
}

func (u *s3Uploader) ValidateBucket(ctx context.Context, bucket string) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return domain.WrapError(domain.KindConfiguration, fmt.Sprintf("bucket %q does not exist", bucket), err)
		case http.StatusForbidden:
			return domain.WrapError(domain.KindConfiguration, fmt.Sprintf("access denied to bucket %q", bucket), err)
		}
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return domain.WrapError(domain.KindConfiguration, fmt.Sprintf("bucket %q not accessible (%s)", bucket, apiErr.ErrorCode()), err)
	}
	return domain.WrapError(domain.KindConfiguration, fmt.Sprintf("bucket %q not accessible", bucket), err)
}

func (u *s3Uploader) Upload(ctx context.Context, bucket string, key string, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}
