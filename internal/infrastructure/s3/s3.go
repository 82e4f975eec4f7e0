package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"lms-upload-api/config"
	"lms-upload-api/internal/domain/upload"
)

type Client struct {
	logger       *zap.Logger
	client       *s3.Client
	presign      *s3.PresignClient
	uploader     *manager.Uploader
	bucket       string
	baseURL      string
	transformURL string
	timeout      time.Duration
	presignMax   time.Duration
}

// New builds the process-wide storage client. Calls are never retried: a
// failed remote call is reported as-is, bounded by cfg.Timeout.
func New(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.S3,
) (*Client, error) {
	if cfg.Bucket == "" || cfg.Region == "" || cfg.PublicBaseURL == "" ||
		cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("incomplete S3 config: bucket, region, public base url and credentials are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	presignMax := cfg.PresignMax
	if presignMax <= 0 {
		presignMax = 7 * 24 * time.Hour
	}

	logger.Info("s3 client configured",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.Endpoint),
	)

	return &Client{
		logger:       logger,
		client:       client,
		presign:      s3.NewPresignClient(client),
		uploader:     manager.NewUploader(client),
		bucket:       cfg.Bucket,
		baseURL:      strings.TrimRight(cfg.PublicBaseURL, "/"),
		transformURL: strings.TrimRight(cfg.TransformURL, "/"),
		timeout:      timeout,
		presignMax:   presignMax,
	}, nil
}

func (c *Client) Put(ctx context.Context, req upload.PutRequest) (*upload.UploadedObject, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	now := time.Now().UTC()
	key := upload.NewKey(req.Folder, req.OriginalName)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        req.Body,
		ContentType: aws.String(req.ContentType),
		Metadata:    upload.MergeMetadata(req.OriginalName, now, req.Metadata),
	}
	if req.ACL != "" {
		input.ACL = types.ObjectCannedACL(req.ACL)
	}
	if req.CacheControl != "" {
		input.CacheControl = aws.String(req.CacheControl)
	}
	if req.ContentDisposition != "" {
		input.ContentDisposition = aws.String(req.ContentDisposition)
	}

	out, err := c.uploader.Upload(ctx, input)
	if err != nil {
		return nil, storeError("put", key, err)
	}

	return &upload.UploadedObject{
		Key:          key,
		Folder:       req.Folder,
		OriginalName: req.OriginalName,
		ContentType:  req.ContentType,
		SizeBytes:    req.Size,
		URL:          c.PublicURL(key),
		ETag:         trimETag(out.ETag),
		VersionID:    aws.ToString(out.VersionID),
		CreatedAt:    now,
	}, nil
}

// Remove does not check for existence first; the backend decides what
// deleting a missing key means (S3 reports success).
func (c *Client) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return storeError("delete", key, err)
	}
	return nil
}

func (c *Client) HeadInfo(ctx context.Context, key string) (*upload.ObjectInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, storeError("head", key, err)
	}

	return &upload.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
		ETag:         trimETag(out.ETag),
		Metadata:     upload.StoredMetadata(out.Metadata),
	}, nil
}

func (c *Client) List(ctx context.Context, prefix string, opts upload.ListOptions) (*upload.ListPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts = upload.NormalizeListOptions(opts)
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(int32(opts.MaxResults)),
	}
	if opts.ContinuationToken != "" {
		input.ContinuationToken = aws.String(opts.ContinuationToken)
	}

	out, err := c.client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, storeError("list", prefix, err)
	}

	page := &upload.ListPage{
		Files:                 make([]upload.ObjectSummary, 0, len(out.Contents)),
		IsTruncated:           aws.ToBool(out.IsTruncated),
		NextContinuationToken: aws.ToString(out.NextContinuationToken),
	}
	for _, o := range out.Contents {
		key := aws.ToString(o.Key)
		page.Files = append(page.Files, upload.ObjectSummary{
			Key:          key,
			Size:         aws.ToInt64(o.Size),
			LastModified: aws.ToTime(o.LastModified),
			ETag:         trimETag(o.ETag),
			URL:          c.PublicURL(key),
		})
	}

	return page, nil
}

// Copy is server-side; no object data passes through this process. Keys are
// validated to a URL-safe alphabet upstream, so CopySource needs no escaping.
func (c *Client) Copy(ctx context.Context, srcKey, dstKey string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(c.bucket + "/" + srcKey),
	}); err != nil {
		return storeError("copy", srcKey, err)
	}
	return nil
}

// Presign signs locally. Issued URLs are not tracked and cannot be revoked;
// the signature's expiry is the only bound.
func (c *Client) Presign(ctx context.Context, key string, expires time.Duration) (*upload.PresignedURL, error) {
	if expires <= 0 {
		expires = upload.DefaultPresignExpiry
	}
	if expires > c.presignMax {
		return nil, upload.InputError("expiresIn must not exceed %d seconds", int(c.presignMax.Seconds()))
	}

	req, err := c.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return nil, storeError("presign", key, err)
	}

	return &upload.PresignedURL{URL: req.URL, ExpiresIn: expires}, nil
}

// OptimizedURL only builds a URL. Without a transform service configured it
// is the plain object URL and no resizing happens.
func (c *Client) OptimizedURL(key string, opts upload.TransformOptions) string {
	plain := c.PublicURL(key)
	if c.transformURL == "" {
		return plain
	}

	var parts []string
	if opts.Width > 0 {
		parts = append(parts, "width="+strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		parts = append(parts, "height="+strconv.Itoa(opts.Height))
	}
	if opts.Quality > 0 {
		parts = append(parts, "quality="+strconv.Itoa(opts.Quality))
	}
	if opts.Format != "" {
		parts = append(parts, "format="+opts.Format)
	}
	if len(parts) == 0 {
		return plain
	}

	return c.transformURL + "/" + strings.Join(parts, ",") + "/" + plain
}

func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.baseURL, c.bucket, key)
}

// storeError keeps the backend's own message and flags not-found answers.
func storeError(op, key string, err error) error {
	se := &upload.StoreError{Op: op, Key: key, Message: err.Error(), Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		se.Message = apiErr.ErrorMessage()
		if se.Message == "" {
			se.Message = apiErr.ErrorCode()
		}
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			se.NotFound = true
		}
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		se.NotFound = true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		se.Message = "storage request timed out"
	}

	return se
}

func trimETag(s *string) string { return strings.Trim(aws.ToString(s), `"`) }
