package validator

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"

	"lms-upload-api/internal/domain/upload"
)

const (
	maxQuality      = 100
	maxTransformDim = 10000
)

var transformFormats = []string{"auto", "webp", "avif", "jpeg", "png"}

// uploadOptions mirrors the "options" form field. Metadata stays loosely
// typed so non-string values can be reported instead of coerced.
type uploadOptions struct {
	Metadata           map[string]any `json:"metadata"`
	ACL                string         `json:"acl"`
	CacheControl       string         `json:"cacheControl"`
	ContentDisposition string         `json:"contentDisposition"`
}

func ParseUploadOptions(raw string) (upload.UploadOptions, error) {
	var out upload.UploadOptions
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var in uploadOptions
	if err := dec.Decode(&in); err != nil {
		return out, upload.InputError("options must be a JSON object")
	}

	if len(in.Metadata) > 0 {
		out.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			s, ok := v.(string)
			if !ok {
				return upload.UploadOptions{}, upload.InputError("metadata value for %q must be a string", k)
			}
			if strings.TrimSpace(k) == "" {
				return upload.UploadOptions{}, upload.InputError("metadata keys must not be empty")
			}
			out.Metadata[k] = s
		}
	}
	out.ACL = strings.TrimSpace(in.ACL)
	out.CacheControl = strings.TrimSpace(in.CacheControl)
	out.ContentDisposition = strings.TrimSpace(in.ContentDisposition)

	return out, nil
}

func ParseListOptions(maxResults, continuationToken string) (upload.ListOptions, error) {
	opts := upload.ListOptions{ContinuationToken: strings.TrimSpace(continuationToken)}
	if maxResults == "" {
		return opts, nil
	}

	n, err := strconv.Atoi(maxResults)
	if err != nil || n < 1 || n > upload.MaxListResults {
		return opts, upload.InputError("maxResults must be an integer between 1 and %d", upload.MaxListResults)
	}
	opts.MaxResults = n

	return opts, nil
}

func ParseTransformOptions(width, height, quality, format string) (upload.TransformOptions, error) {
	var (
		opts upload.TransformOptions
		err  error
	)
	if opts.Width, err = positiveInt("width", width, maxTransformDim); err != nil {
		return opts, err
	}
	if opts.Height, err = positiveInt("height", height, maxTransformDim); err != nil {
		return opts, err
	}
	if opts.Quality, err = positiveInt("quality", quality, maxQuality); err != nil {
		return opts, err
	}

	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && !slices.Contains(transformFormats, format) {
		return opts, upload.InputError("format must be one of %s", strings.Join(transformFormats, ", "))
	}
	opts.Format = format

	return opts, nil
}

// ParseExpiresIn reads a presign lifetime in seconds. Empty means the default.
func ParseExpiresIn(s string) (time.Duration, error) {
	if s == "" {
		return upload.DefaultPresignExpiry, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0, upload.InputError("expiresIn must be a positive number of seconds")
	}
	return time.Duration(n) * time.Second, nil
}

func positiveInt(name, s string, max int) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > max {
		return 0, upload.InputError("%s must be an integer between 1 and %d", name, max)
	}
	return n, nil
}
