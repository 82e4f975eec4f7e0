package upload

import (
	"io"
	"strings"
	"time"
)

const (
	MetaOriginalName = "originalName"
	MetaUploadedAt   = "uploadedAt"

	DefaultPresignExpiry = time.Hour
	MaxListResults       = 1000
)

type (
	// UploadedObject is one file persisted in the bucket. It only exists
	// after the remote put succeeded.
	UploadedObject struct {
		Key          string
		Folder       string
		OriginalName string
		ContentType  string
		SizeBytes    int64
		URL          string
		Width        *int
		Height       *int
		ETag         string
		VersionID    string
		CreatedAt    time.Time
	}

	PutRequest struct {
		Body         io.ReadSeeker
		OriginalName string
		ContentType  string
		Size         int64
		Folder       string

		Metadata           map[string]string
		ACL                string
		CacheControl       string
		ContentDisposition string
	}

	ObjectInfo struct {
		Key          string
		Size         int64
		ContentType  string
		LastModified time.Time
		ETag         string
		Metadata     map[string]string
	}

	ObjectSummary struct {
		Key          string
		Size         int64
		LastModified time.Time
		ETag         string
		URL          string
	}

	ListOptions struct {
		MaxResults        int
		ContinuationToken string
	}

	ListPage struct {
		Files                 []ObjectSummary
		IsTruncated           bool
		NextContinuationToken string
	}

	PresignedURL struct {
		URL       string
		ExpiresIn time.Duration
	}

	TransformOptions struct {
		Width   int
		Height  int
		Quality int
		Format  string
	}

	// UploadOptions is the caller-controlled part of a put, decoded from the
	// "options" form field.
	UploadOptions struct {
		Metadata           map[string]string
		ACL                string
		CacheControl       string
		ContentDisposition string
	}

	// Failure is one file of a batch that did not make it to the bucket.
	Failure struct {
		OriginalName string
		Err          error
	}

	BatchResult struct {
		Uploaded []*UploadedObject
		Failed   []Failure
	}

	Stats struct {
		TotalFiles int64
		TotalSize  int64
		Folders    map[string]int64
	}
)

// Format is the object's extension, as used in client-facing payloads.
func (o *UploadedObject) Format() string { return ExtensionOf(o.Key) }

// MergeMetadata overlays caller metadata on the two reserved keys. Caller keys
// that collide with a reserved key (case-insensitively, as S3 lower-cases
// user metadata) are dropped.
func MergeMetadata(originalName string, uploadedAt time.Time, caller map[string]string) map[string]string {
	out := make(map[string]string, len(caller)+2)
	for k, v := range caller {
		if isReservedMetaKey(k) {
			continue
		}
		out[k] = v
	}
	out[MetaOriginalName] = SanitizeOriginalName(originalName)
	out[MetaUploadedAt] = uploadedAt.UTC().Format(time.RFC3339)

	return out
}

// StoredMetadata is metadata as a store hands it back. S3 lower-cases every
// user metadata key; the reserved keys are restored to their canonical names.
func StoredMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		k = strings.ToLower(k)
		switch {
		case strings.EqualFold(k, MetaOriginalName):
			k = MetaOriginalName
		case strings.EqualFold(k, MetaUploadedAt):
			k = MetaUploadedAt
		}
		out[k] = v
	}
	return out
}

// NormalizeListOptions applies the default page size and clamps it.
func NormalizeListOptions(o ListOptions) ListOptions {
	if o.MaxResults <= 0 || o.MaxResults > MaxListResults {
		o.MaxResults = MaxListResults
	}
	return o
}
