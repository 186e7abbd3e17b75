package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads images from an S3 bucket under an optional key prefix.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source returns a bucket-backed source.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	if client == nil {
		panic("media: s3 client cannot be nil")
	}
	return &S3Source{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key an image name maps to.
func (s *S3Source) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Open implements Source.
func (s *S3Source) Open(ctx context.Context, name string) (*Object, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	key := s.Key(name)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("media: s3 get %s: %w", key, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" || contentType == "binary/octet-stream" {
		contentType = ContentTypeFor(name)
	}
	return &Object{Body: out.Body, ContentType: contentType, Size: aws.ToInt64(out.ContentLength)}, nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
