package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter is the part of the S3 client the loader needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Loader reads text objects from a bucket.
type S3Loader struct {
	bucket string
	client ObjectGetter
	cache  *cache
}

// NewS3Loader reads from bucket unless a location names its own.
func NewS3Loader(bucket string, client ObjectGetter) *S3Loader {
	return &S3Loader{bucket: bucket, client: client, cache: newCache()}
}

// splitLocation accepts s3://bucket/key or a bare key.
func (l *S3Loader) splitLocation(location string) (string, string, error) {
	if !strings.HasPrefix(strings.ToLower(location), "s3://") {
		return l.bucket, strings.TrimPrefix(location, "/"), nil
	}
	bucket, key, ok := strings.Cut(location[len("s3://"):], "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 location %q", location)
	}
	return bucket, key, nil
}

// Load returns the object body as text.
func (l *S3Loader) Load(ctx context.Context, location string) (string, error) {
	bucket, key, err := l.splitLocation(location)
	if err != nil {
		return "", err
	}
	if bucket == "" {
		return "", fmt.Errorf("no bucket for s3 key %q", key)
	}

	return l.cache.get(bucket+"/"+key, func() (string, error) {
		out, err := l.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return "", fmt.Errorf("failed to get %s from S3: %w", key, err)
		}
		defer out.Body.Close()

		data, err := io.ReadAll(out.Body)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", key, err)
		}
		return string(data), nil
	})
}
