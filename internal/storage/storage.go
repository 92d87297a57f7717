// Package storage reads file content straight from the S3-compatible object store
// that backs the file service, for records whose locator is an s3:// URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"
)

const LocatorScheme = "s3"

var (
	ErrNotLocator    = errors.New("not an s3 locator")
	ErrForeignBucket = errors.New("locator refers to a bucket this panel is not configured for")
)

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
}

// Storage is a read-only, S3-compatible object storage client.
type Storage interface {
	// Bucket returns the bucket this client reads from.
	Bucket() string
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
}

// IsLocator reports whether locator uses the s3:// scheme.
func IsLocator(locator string) bool {
	return strings.HasPrefix(strings.ToLower(locator), LocatorScheme+"://")
}

// ParseLocator splits s3://bucket/key into its bucket and object key.
func ParseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("parse locator: %w", err)
	}
	if !strings.EqualFold(u.Scheme, LocatorScheme) {
		return "", "", ErrNotLocator
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q needs both bucket and key", ErrNotLocator, locator)
	}
	return u.Host, key, nil
}

// Open resolves an s3:// locator against s, refusing locators for other buckets.
func Open(ctx context.Context, s Storage, locator string) (io.ReadCloser, ObjectInfo, error) {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if bucket != s.Bucket() {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s", ErrForeignBucket, bucket)
	}
	return s.Get(ctx, key)
}
