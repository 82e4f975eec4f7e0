// Package memstore is an in-memory ObjectStorage used by tests and local
// tooling. It records how many times each operation was called.
package memstore

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lms-upload-api/internal/domain/upload"
)

type object struct {
	data         []byte
	contentType  string
	metadata     map[string]string
	lastModified time.Time
	etag         string
}

type Store struct {
	mu      sync.RWMutex
	baseURL string
	bucket  string
	objects map[string]*object
	calls   map[string]int

	// PutErr, when set, is consulted before every put. A non-nil return
	// fails the put with that message, as a backend rejection would.
	PutErr func(req upload.PutRequest) error
}

func New(baseURL, bucket string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		objects: make(map[string]*object),
		calls:   make(map[string]int),
	}
}

// Calls returns how many times op ("put", "remove", "head", "list", "copy",
// "presign") was invoked.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *Store) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *Store) Put(ctx context.Context, req upload.PutRequest) (*upload.UploadedObject, error) {
	s.count("put")

	if s.PutErr != nil {
		if err := s.PutErr(req); err != nil {
			return nil, &upload.StoreError{Op: "put", Message: err.Error(), Err: err}
		}
	}

	data, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, &upload.StoreError{Op: "put", Message: err.Error(), Err: err}
	}

	now := time.Now().UTC()
	key := upload.NewKey(req.Folder, req.OriginalName)
	obj := &object{
		data:         data,
		contentType:  req.ContentType,
		metadata:     upload.MergeMetadata(req.OriginalName, now, req.Metadata),
		lastModified: now,
		etag:         strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	s.mu.Lock()
	s.objects[key] = obj
	s.mu.Unlock()

	return &upload.UploadedObject{
		Key:          key,
		Folder:       req.Folder,
		OriginalName: req.OriginalName,
		ContentType:  req.ContentType,
		SizeBytes:    int64(len(data)),
		URL:          s.PublicURL(key),
		ETag:         obj.etag,
		CreatedAt:    now,
	}, nil
}

// Remove follows S3: deleting a missing key succeeds.
func (s *Store) Remove(ctx context.Context, key string) error {
	s.count("remove")

	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()

	return nil
}

func (s *Store) HeadInfo(ctx context.Context, key string) (*upload.ObjectInfo, error) {
	s.count("head")

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, &upload.StoreError{Op: "head", Key: key, Message: "Not Found", NotFound: true}
	}

	return &upload.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		LastModified: obj.lastModified,
		ETag:         obj.etag,
		Metadata:     upload.StoredMetadata(obj.metadata),
	}, nil
}

// List pages through keys in lexical order; the continuation token is the
// last key of the previous page.
func (s *Store) List(ctx context.Context, prefix string, opts upload.ListOptions) (*upload.ListPage, error) {
	s.count("list")
	opts = upload.NormalizeListOptions(opts)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) && k > opts.ContinuationToken {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	page := &upload.ListPage{Files: []upload.ObjectSummary{}}
	if len(keys) > opts.MaxResults {
		keys = keys[:opts.MaxResults]
		page.IsTruncated = true
		page.NextContinuationToken = keys[len(keys)-1]
	}
	for _, k := range keys {
		obj := s.objects[k]
		page.Files = append(page.Files, upload.ObjectSummary{
			Key:          k,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
			ETag:         obj.etag,
			URL:          s.PublicURL(k),
		})
	}

	return page, nil
}

func (s *Store) Copy(ctx context.Context, srcKey, dstKey string) error {
	s.count("copy")

	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.objects[srcKey]
	if !ok {
		return &upload.StoreError{Op: "copy", Key: srcKey, Message: "The specified key does not exist.", NotFound: true}
	}
	cp := *src
	cp.data = slices.Clone(src.data)
	cp.metadata = maps.Clone(src.metadata)
	cp.lastModified = time.Now().UTC()
	s.objects[dstKey] = &cp

	return nil
}

func (s *Store) Presign(ctx context.Context, key string, expires time.Duration) (*upload.PresignedURL, error) {
	s.count("presign")

	if expires <= 0 {
		expires = upload.DefaultPresignExpiry
	}
	return &upload.PresignedURL{
		URL:       fmt.Sprintf("%s?X-Amz-Expires=%d", s.PublicURL(key), int(expires.Seconds())),
		ExpiresIn: expires,
	}, nil
}

func (s *Store) OptimizedURL(key string, _ upload.TransformOptions) string {
	return s.PublicURL(key)
}

func (s *Store) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}
