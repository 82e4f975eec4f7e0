package services

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"lms-upload-api/internal/application/ports"
	"lms-upload-api/internal/domain/upload"
	"lms-upload-api/internal/infrastructure/metrics"
	"lms-upload-api/internal/infrastructure/mq"
	"lms-upload-api/internal/infrastructure/staging"
)

const defaultMaxParallel = 8

type UploadService struct {
	storage     ports.ObjectStorage
	events      ports.EventPublisher
	mCounter    *prometheus.CounterVec
	maxParallel int
}

func NewUploadService(
	storage ports.ObjectStorage,
	events ports.EventPublisher,
	mCounter *prometheus.CounterVec,
	maxParallel int,
) ports.UploadService {
	if events == nil {
		events = mq.Nop{}
	}
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	return &UploadService{
		storage:     storage,
		events:      events,
		mCounter:    mCounter,
		maxParallel: maxParallel,
	}
}

// Upload validates f against the profile and puts it under folder. An empty
// folder falls back to the profile's folder, then to the part's field name.
func (us *UploadService) Upload(
	ctx context.Context,
	f *staging.File,
	folder string,
	profile upload.Profile,
	opts upload.UploadOptions,
) (*upload.UploadedObject, error) {
	if f == nil {
		return nil, upload.InputError("no file provided")
	}

	folder = resolveFolder(folder, profile, f.FieldName)
	if err := upload.ValidateFolder(folder); err != nil {
		return nil, err
	}

	if err := profile.Validate(f.ContentType, f.Size); err != nil {
		us.inc(metrics.UploadsRejected)
		return nil, err
	}

	body, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open staged file: %w", err)
	}
	defer body.Close()

	width, height := imageSize(body, f.ContentType)
	if _, err = body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind staged file: %w", err)
	}

	obj, err := us.storage.Put(ctx, upload.PutRequest{
		Body:               body,
		OriginalName:       f.OriginalName,
		ContentType:        f.ContentType,
		Size:               f.Size,
		Folder:             folder,
		Metadata:           opts.Metadata,
		ACL:                opts.ACL,
		CacheControl:       opts.CacheControl,
		ContentDisposition: opts.ContentDisposition,
	})
	if err != nil {
		us.inc(metrics.UploadsFailed)
		return nil, err
	}
	obj.Width, obj.Height = width, height

	us.inc(metrics.FilesUploaded)

	e := mq.NewEvent(mq.ActionUploaded, obj.Key)
	e.Folder = obj.Folder
	e.URL = obj.URL
	e.Size = obj.SizeBytes
	e.ContentType = obj.ContentType
	us.events.Publish(e)

	return obj, nil
}

// UploadMany uploads every file independently. Failures are collected, never
// escalated; Uploaded keeps the request order of the successful files.
func (us *UploadService) UploadMany(
	ctx context.Context,
	files []*staging.File,
	folder string,
	profile upload.Profile,
) *upload.BatchResult {
	objs := make([]*upload.UploadedObject, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(us.maxParallel)
	for i, f := range files {
		g.Go(func() error {
			objs[i], errs[i] = us.Upload(ctx, f, folder, profile, upload.UploadOptions{})
			return nil
		})
	}
	_ = g.Wait()

	res := &upload.BatchResult{
		Uploaded: make([]*upload.UploadedObject, 0, len(files)),
		Failed:   make([]upload.Failure, 0),
	}
	for i, f := range files {
		if errs[i] != nil {
			name := ""
			if f != nil {
				name = f.OriginalName
			}
			res.Failed = append(res.Failed, upload.Failure{OriginalName: name, Err: errs[i]})
			continue
		}
		res.Uploaded = append(res.Uploaded, objs[i])
	}

	return res
}

func (us *UploadService) Delete(ctx context.Context, key string) error {
	if err := upload.ValidateKey(key); err != nil {
		return err
	}

	if err := us.storage.Remove(ctx, key); err != nil {
		return err
	}

	us.inc(metrics.FilesDeleted)

	e := mq.NewEvent(mq.ActionDeleted, key)
	e.Folder = folderOf(key)
	us.events.Publish(e)

	return nil
}

func (us *UploadService) Info(ctx context.Context, key string) (*upload.ObjectInfo, error) {
	if err := upload.ValidateKey(key); err != nil {
		return nil, err
	}

	return us.storage.HeadInfo(ctx, key)
}

func (us *UploadService) List(ctx context.Context, folder string, opts upload.ListOptions) (*upload.ListPage, error) {
	if err := upload.ValidateFolder(folder); err != nil {
		return nil, err
	}

	return us.storage.List(ctx, folder+"/", upload.NormalizeListOptions(opts))
}

func (us *UploadService) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := upload.ValidateKey(srcKey); err != nil {
		return err
	}
	if err := upload.ValidateKey(dstKey); err != nil {
		return err
	}
	if srcKey == dstKey {
		return upload.InputError("destination key must differ from source key")
	}

	return us.storage.Copy(ctx, srcKey, dstKey)
}

func (us *UploadService) Presign(ctx context.Context, key string, expires time.Duration) (*upload.PresignedURL, error) {
	if err := upload.ValidateKey(key); err != nil {
		return nil, err
	}
	if expires < 0 {
		return nil, upload.InputError("expiresIn must be positive")
	}

	return us.storage.Presign(ctx, key, expires)
}

func (us *UploadService) OptimizedURL(key string, opts upload.TransformOptions) string {
	return us.storage.OptimizedURL(key, opts)
}

// UpdateMetadata is not supported: S3 metadata can only be replaced by a
// self-copy, which the LMS never needed.
func (us *UploadService) UpdateMetadata(ctx context.Context, key string, metadata map[string]string) error {
	return upload.ErrNotImplemented
}

func (us *UploadService) GenerateThumbnail(ctx context.Context, key string) (*upload.UploadedObject, error) {
	return nil, fmt.Errorf("%w: thumbnail generation requires additional video processing service", upload.ErrNotImplemented)
}

// Stats always reports an empty bucket.
func (us *UploadService) Stats(ctx context.Context) (*upload.Stats, error) {
	return &upload.Stats{Folders: map[string]int64{}}, nil
}

func (us *UploadService) inc(label string) {
	if us.mCounter != nil {
		us.mCounter.WithLabelValues(label).Inc()
	}
}

func resolveFolder(folder string, profile upload.Profile, field string) string {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	switch {
	case folder != "":
		return folder
	case profile.Folder != "":
		return profile.Folder
	default:
		return upload.FolderForField(field)
	}
}

func folderOf(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[:i]
	}
	return ""
}

// imageSize reads only the header. Non-images and unknown formats yield nil.
func imageSize(r io.Reader, contentType string) (*int, *int) {
	if !strings.HasPrefix(contentType, "image/") {
		return nil, nil
	}
	cfg, _, err := image.DecodeConfig(r)
	if err != nil {
		return nil, nil
	}
	return &cfg.Width, &cfg.Height
}
