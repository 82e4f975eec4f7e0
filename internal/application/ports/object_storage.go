package ports

import (
	"context"
	"time"

	"lms-upload-api/internal/domain/upload"
)

// ObjectStorage is the storage adapter contract. Failures come back as
// errors; a *upload.StoreError carries the backend's message.
type ObjectStorage interface {
	Put(ctx context.Context, req upload.PutRequest) (*upload.UploadedObject, error)
	Remove(ctx context.Context, key string) error
	HeadInfo(ctx context.Context, key string) (*upload.ObjectInfo, error)
	List(ctx context.Context, prefix string, opts upload.ListOptions) (*upload.ListPage, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Presign(ctx context.Context, key string, expires time.Duration) (*upload.PresignedURL, error)
	OptimizedURL(key string, opts upload.TransformOptions) string
	PublicURL(key string) string
}
