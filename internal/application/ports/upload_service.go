package ports

import (
	"context"
	"time"

	"lms-upload-api/internal/domain/upload"
	"lms-upload-api/internal/infrastructure/staging"
)

type UploadService interface {
	Upload(ctx context.Context, f *staging.File, folder string, profile upload.Profile, opts upload.UploadOptions) (*upload.UploadedObject, error)
	UploadMany(ctx context.Context, files []*staging.File, folder string, profile upload.Profile) *upload.BatchResult
	Delete(ctx context.Context, key string) error
	Info(ctx context.Context, key string) (*upload.ObjectInfo, error)
	List(ctx context.Context, folder string, opts upload.ListOptions) (*upload.ListPage, error)
	Copy(ctx context.Context, srcKey, dstKey string) error
	Presign(ctx context.Context, key string, expires time.Duration) (*upload.PresignedURL, error)
	OptimizedURL(key string, opts upload.TransformOptions) string
	UpdateMetadata(ctx context.Context, key string, metadata map[string]string) error
	GenerateThumbnail(ctx context.Context, key string) (*upload.UploadedObject, error)
	Stats(ctx context.Context) (*upload.Stats, error)
}
