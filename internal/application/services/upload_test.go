package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lms-upload-api/internal/domain/upload"
	"lms-upload-api/internal/infrastructure/memstore"
	"lms-upload-api/internal/infrastructure/metrics"
	"lms-upload-api/internal/infrastructure/mq"
	"lms-upload-api/internal/infrastructure/staging"
)

var uuidKeyRe = `[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`

type FakePublisher struct {
	mu     sync.Mutex
	events []mq.Event
}

func (f *FakePublisher) Publish(e mq.Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

func (f *FakePublisher) Actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

func stageFile(t *testing.T, field, name, contentType string, data []byte) *staging.File {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload-"+name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return &staging.File{
		FieldName:    field,
		OriginalName: name,
		ContentType:  contentType,
		Size:         int64(len(data)),
		Path:         p,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func newTestService() (*UploadService, *memstore.Store, *FakePublisher) {
	store := memstore.New("https://media.example.com", "lms-media")
	pub := &FakePublisher{}
	svc := NewUploadService(store, pub, metrics.NewTestCounter(), 2).(*UploadService)
	return svc, store, pub
}

func TestUpload_ProfileRejectsBeforePut(t *testing.T) {
	tests := []struct {
		name        string
		profile     upload.Profile
		contentType string
		size        int64
		rule        upload.ValidationRule
	}{
		{"avatar wrong type", upload.ProfileAvatar, "application/pdf", 10, upload.RuleContentType},
		{"avatar too big", upload.ProfileAvatar, "image/png", 5<<20 + 1, upload.RuleMaxSize},
		{"thumbnail wrong type", upload.ProfileThumbnail, "image/gif", 10, upload.RuleContentType},
		{"thumbnail too big", upload.ProfileThumbnail, "image/webp", 6 << 20, upload.RuleMaxSize},
		{"video wrong type", upload.ProfileVideo, "video/x-matroska", 10, upload.RuleContentType},
		{"video too big", upload.ProfileVideo, "video/mp4", 100<<20 + 1, upload.RuleMaxSize},
		{"document wrong type", upload.ProfileDocument, "image/png", 10, upload.RuleContentType},
		{"document too big", upload.ProfileDocument, "application/pdf", 21 << 20, upload.RuleMaxSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, pub := newTestService()
			f := stageFile(t, "file", "x.bin", tt.contentType, []byte("data"))
			f.Size = tt.size

			obj, err := svc.Upload(context.Background(), f, "", tt.profile, upload.UploadOptions{})
			require.Error(t, err)
			assert.Nil(t, obj)

			var ve *upload.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.rule, ve.Rule)
			assert.Equal(t, tt.profile.Name, ve.Profile)

			assert.Equal(t, 0, store.Calls("put"))
			assert.Empty(t, pub.Actions())
			assert.Equal(t, float64(1), testutil.ToFloat64(svc.mCounter.WithLabelValues(metrics.UploadsRejected)))
		})
	}
}

func TestUpload_KeysAreRandomAndScoped(t *testing.T) {
	svc, store, pub := newTestService()
	re := regexp.MustCompile(`^avatars/` + uuidKeyRe + `\.png$`)

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		f := stageFile(t, "avatar", "me.png", "image/png", pngBytes(t, 3, 2))
		obj, err := svc.Upload(context.Background(), f, "", upload.ProfileAvatar, upload.UploadOptions{})
		require.NoError(t, err)

		assert.Regexp(t, re, obj.Key)
		assert.False(t, seen[obj.Key], "key reused: %s", obj.Key)
		seen[obj.Key] = true

		assert.Equal(t, "avatars", obj.Folder)
		assert.Equal(t, "png", obj.Format())
		assert.Equal(t, "https://media.example.com/lms-media/"+obj.Key, obj.URL)
		require.NotNil(t, obj.Width)
		require.NotNil(t, obj.Height)
		assert.Equal(t, 3, *obj.Width)
		assert.Equal(t, 2, *obj.Height)
	}

	assert.Equal(t, 3, store.Len())
	assert.Equal(t, []string{mq.ActionUploaded, mq.ActionUploaded, mq.ActionUploaded}, pub.Actions())
}

func TestUpload_FolderResolution(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		folder  string
		profile upload.Profile
		want    string
		wantErr bool
	}{
		{"field avatar", "avatar", "", upload.ProfileGeneric, "avatars", false},
		{"field video", "video", "", upload.ProfileGeneric, "videos", false},
		{"field other", "file", "", upload.ProfileGeneric, "images", false},
		{"caller folder wins", "avatar", "courses/intro", upload.ProfileGeneric, "courses/intro", false},
		{"trimmed slashes", "file", "/courses/", upload.ProfileGeneric, "courses", false},
		{"profile folder", "file", "", upload.ProfileDocument, "documents", false},
		{"traversal", "file", "../etc", upload.ProfileGeneric, "", true},
		{"dot segment", "file", "a/./b", upload.ProfileGeneric, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newTestService()
			ct := "text/plain"
			f := stageFile(t, tt.field, "notes.txt", ct, []byte("hello"))

			obj, err := svc.Upload(context.Background(), f, tt.folder, tt.profile, upload.UploadOptions{})
			if tt.wantErr {
				require.ErrorIs(t, err, upload.ErrInput)
				assert.Equal(t, 0, store.Calls("put"))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, obj.Folder)
			assert.Regexp(t, `^`+regexp.QuoteMeta(tt.want)+`/`+uuidKeyRe+`\.txt$`, obj.Key)
			assert.Nil(t, obj.Width)
		})
	}
}

func TestUpload_GenericSkipsValidation(t *testing.T) {
	svc, store, _ := newTestService()
	f := stageFile(t, "file", "huge.exe", "application/x-msdownload", []byte("MZ"))
	f.Size = 1 << 30

	_, err := svc.Upload(context.Background(), f, "", upload.ProfileGeneric, upload.UploadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Calls("put"))
}

func TestUpload_NoFile(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.Upload(context.Background(), nil, "", upload.ProfileGeneric, upload.UploadOptions{})
	require.ErrorIs(t, err, upload.ErrInput)
	assert.Equal(t, 0, store.Calls("put"))
}

func TestUpload_StoreFailure(t *testing.T) {
	svc, store, pub := newTestService()
	store.PutErr = func(upload.PutRequest) error { return errors.New("Access Denied") }
	f := stageFile(t, "document", "a.pdf", "application/pdf", []byte("%PDF"))

	obj, err := svc.Upload(context.Background(), f, "", upload.ProfileDocument, upload.UploadOptions{})
	require.Error(t, err)
	assert.Nil(t, obj)

	var se *upload.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Access Denied", se.Message)
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, pub.Actions())
	assert.Equal(t, float64(1), testutil.ToFloat64(svc.mCounter.WithLabelValues(metrics.UploadsFailed)))
}

func TestUpload_MetadataReservedKeys(t *testing.T) {
	svc, store, _ := newTestService()
	f := stageFile(t, "file", "Résumé.txt", "text/plain", []byte("cv"))

	obj, err := svc.Upload(context.Background(), f, "documents", upload.ProfileGeneric, upload.UploadOptions{
		Metadata: map[string]string{"courseId": "c-1", "ORIGINALNAME": "spoofed", "uploadedAt": "1970"},
	})
	require.NoError(t, err)

	info, err := store.HeadInfo(context.Background(), obj.Key)
	require.NoError(t, err)
	assert.Equal(t, "c-1", info.Metadata["courseid"])
	assert.Equal(t, "Resume.txt", info.Metadata[upload.MetaOriginalName])
	assert.NotEqual(t, "1970", info.Metadata[upload.MetaUploadedAt])
	assert.NotContains(t, info.Metadata, "ORIGINALNAME")
}

func TestUploadMany_PartialFailure(t *testing.T) {
	svc, store, _ := newTestService()
	files := []*staging.File{
		stageFile(t, "files", "a.png", "image/png", pngBytes(t, 1, 1)),
		stageFile(t, "files", "bad.pdf", "application/pdf", []byte("%PDF")),
		stageFile(t, "files", "c.jpg", "image/jpeg", []byte("not really a jpeg")),
	}

	res := svc.UploadMany(context.Background(), files, "", upload.ProfileAvatar)

	require.Len(t, res.Uploaded, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "bad.pdf", res.Failed[0].OriginalName)
	assert.Equal(t, "a.png", res.Uploaded[0].OriginalName)
	assert.Equal(t, "c.jpg", res.Uploaded[1].OriginalName)
	assert.Nil(t, res.Uploaded[1].Width)
	assert.Equal(t, 2, store.Calls("put"))
}

func TestUploadMany_Empty(t *testing.T) {
	svc, _, _ := newTestService()

	res := svc.UploadMany(context.Background(), nil, "", upload.ProfileGeneric)
	assert.Empty(t, res.Uploaded)
	assert.NotNil(t, res.Failed)
}

func TestDelete(t *testing.T) {
	svc, store, pub := newTestService()

	require.NoError(t, svc.Delete(context.Background(), "videos/never-created.mp4"))
	assert.Equal(t, 1, store.Calls("remove"))
	assert.Equal(t, []string{mq.ActionDeleted}, pub.Actions())

	err := svc.Delete(context.Background(), "../secret")
	require.ErrorIs(t, err, upload.ErrInput)
	assert.Equal(t, 1, store.Calls("remove"))
}

func TestInfo_RoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	data := []byte("%PDF-1.7 course syllabus")
	f := stageFile(t, "document", "syllabus.pdf", "application/pdf", data)

	obj, err := svc.Upload(context.Background(), f, "", upload.ProfileDocument, upload.UploadOptions{})
	require.NoError(t, err)

	info, err := svc.Info(context.Background(), obj.Key)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), info.Size)
	assert.Equal(t, "application/pdf", info.ContentType)
	assert.Equal(t, "syllabus.pdf", info.Metadata[upload.MetaOriginalName])

	_, err = svc.Info(context.Background(), "documents/missing.pdf")
	assert.ErrorIs(t, err, upload.ErrNotFound)
}

func TestList(t *testing.T) {
	svc, _, _ := newTestService()
	for _, n := range []string{"a.png", "b.png", "c.png"} {
		_, err := svc.Upload(context.Background(), stageFile(t, "avatar", n, "image/png", pngBytes(t, 1, 1)), "", upload.ProfileAvatar, upload.UploadOptions{})
		require.NoError(t, err)
	}
	_, err := svc.Upload(context.Background(), stageFile(t, "file", "x.txt", "text/plain", []byte("x")), "avatars-old", upload.ProfileGeneric, upload.UploadOptions{})
	require.NoError(t, err)

	page, err := svc.List(context.Background(), "avatars", upload.ListOptions{MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, page.Files, 2)
	assert.True(t, page.IsTruncated)

	next, err := svc.List(context.Background(), "avatars", upload.ListOptions{MaxResults: 2, ContinuationToken: page.NextContinuationToken})
	require.NoError(t, err)
	assert.Len(t, next.Files, 1)
	assert.False(t, next.IsTruncated)

	_, err = svc.List(context.Background(), "../", upload.ListOptions{})
	assert.ErrorIs(t, err, upload.ErrInput)
}

func TestCopy(t *testing.T) {
	svc, store, _ := newTestService()
	obj, err := svc.Upload(context.Background(), stageFile(t, "file", "a.txt", "text/plain", []byte("abc")), "", upload.ProfileGeneric, upload.UploadOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Copy(context.Background(), obj.Key, "archive/a.txt"))
	info, err := store.HeadInfo(context.Background(), "archive/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(3), info.Size)

	assert.ErrorIs(t, svc.Copy(context.Background(), obj.Key, obj.Key), upload.ErrInput)
	assert.ErrorIs(t, svc.Copy(context.Background(), obj.Key, "../x"), upload.ErrInput)
	assert.ErrorIs(t, svc.Copy(context.Background(), "images/missing.txt", "archive/b.txt"), upload.ErrNotFound)
}

func TestPresign(t *testing.T) {
	svc, _, _ := newTestService()

	p, err := svc.Presign(context.Background(), "documents/a.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, upload.DefaultPresignExpiry, p.ExpiresIn)

	_, err = svc.Presign(context.Background(), "documents/a.pdf", -1)
	assert.ErrorIs(t, err, upload.ErrInput)
}

func TestStubs(t *testing.T) {
	svc, store, _ := newTestService()

	assert.ErrorIs(t, svc.UpdateMetadata(context.Background(), "avatars/a.png", map[string]string{"k": "v"}), upload.ErrNotImplemented)

	obj, err := svc.GenerateThumbnail(context.Background(), "videos/v.mp4")
	assert.Nil(t, obj)
	assert.ErrorIs(t, err, upload.ErrNotImplemented)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
	assert.Zero(t, stats.TotalSize)
	assert.Empty(t, stats.Folders)
	assert.Equal(t, 0, store.Calls("put")+store.Calls("copy"))
}
