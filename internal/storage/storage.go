// Package storage contains object storage abstractions for story media. Backends
// are S3-compatible (MinIO or AWS S3) and rely on streaming I/O only.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"storyapi/internal/config"
	"storyapi/internal/model"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is the object store holding story media.
type Storage interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited URL that can be used to download the object without credentials.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// URL returns the address clients use to fetch the object for the lifetime of a story.
	URL(ctx context.Context, key string) (string, error)
}

// New builds the Storage selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinIO(ctx, cfg.MinIO, cfg.PublicBaseURL)
	case "s3":
		return NewS3(ctx, cfg.S3, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// presignExpiry covers the whole visible lifetime of a story.
const presignExpiry = model.StoryTTL + time.Hour

// objectURL joins a public base URL with an object key. ok is false when no base is configured.
func objectURL(baseURL, key string) (string, bool) {
	base := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return "", false
	}
	return base + "/" + strings.TrimLeft(key, "/"), true
}
