package upload

import "time"

type (
	File struct {
		ID           string    `json:"id"`
		Key          string    `json:"key"`
		URL          string    `json:"url"`
		Format       string    `json:"format"`
		Size         int64     `json:"size"`
		Width        *int      `json:"width"`
		Height       *int      `json:"height"`
		CreatedAt    time.Time `json:"created_at"`
		Folder       string    `json:"folder"`
		OriginalName string    `json:"original_name"`
		ContentType  string    `json:"content_type"`
		ETag         string    `json:"etag,omitempty"`
		VersionID    string    `json:"version_id,omitempty"`
	}
	FileData struct {
		File File `json:"file"`
	}

	FailedFile struct {
		OriginalName string `json:"original_name"`
		Error        string `json:"error"`
	}
	BatchData struct {
		Uploaded []File       `json:"uploaded"`
		Errors   []FailedFile `json:"errors"`
	}

	Info struct {
		Key          string            `json:"key"`
		Size         int64             `json:"size"`
		ContentType  string            `json:"contentType"`
		LastModified time.Time         `json:"lastModified"`
		ETag         string            `json:"etag"`
		Metadata     map[string]string `json:"metadata"`
	}

	ListedFile struct {
		Key          string    `json:"key"`
		Size         int64     `json:"size"`
		LastModified time.Time `json:"lastModified"`
		ETag         string    `json:"etag"`
		URL          string    `json:"url"`
	}
	ListData struct {
		Files                 []ListedFile `json:"files"`
		IsTruncated           bool         `json:"isTruncated"`
		NextContinuationToken string       `json:"nextContinuationToken,omitempty"`
	}

	Deleted struct {
		Deleted bool   `json:"deleted"`
		Key     string `json:"key"`
	}
	Copied struct {
		Copied         bool   `json:"copied"`
		SourceKey      string `json:"sourceKey"`
		DestinationKey string `json:"destinationKey"`
	}
	Updated struct {
		Updated bool   `json:"updated"`
		Key     string `json:"key"`
	}
	Optimized struct {
		URL string `json:"url"`
	}
	Presigned struct {
		PresignedURL string `json:"presignedUrl"`
		ExpiresIn    int64  `json:"expiresIn"`
	}
	Stats struct {
		TotalFiles int64            `json:"totalFiles"`
		TotalSize  int64            `json:"totalSize"`
		Folders    map[string]int64 `json:"folders"`
	}

	CopyRequest struct {
		DestinationKey string `json:"destinationKey"`
	}
)
