package upload

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyRe = regexp.MustCompile(`^avatars/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\.png$`)

func TestNewKey(t *testing.T) {
	k1 := NewKey(FolderAvatars, "me.PNG")
	k2 := NewKey(FolderAvatars, "me.PNG")

	assert.Regexp(t, keyRe, k1)
	assert.Regexp(t, keyRe, k2)
	assert.NotEqual(t, k1, k2)
}

func TestNewKey_Extension(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantExt string
	}{
		{"plain", "lesson.mp4", "mp4"},
		{"upper", "Syllabus.PDF", "pdf"},
		{"no ext", "README", ""},
		{"traversal", "../../etc/passwd", ""},
		{"windows path", `C:\Users\me\notes.txt`, "txt"},
		{"hostile ext", "x.p/h.p$p", ""},
		{"unicode ext", "photo.jpé", ""},
		{"too long", "a." + strings.Repeat("x", 17), ""},
		{"dot file", ".bashrc", "bashrc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := NewKey("documents", tt.in)
			require.True(t, strings.HasPrefix(key, "documents/"))
			assert.Equal(t, tt.wantExt, ExtensionOf(key))
			assert.NoError(t, ValidateKey(key))
		})
	}
}

func TestValidateFolder(t *testing.T) {
	tests := []struct {
		folder string
		ok     bool
	}{
		{"avatars", true},
		{"courses/intro-101/media", true},
		{"course_1", true},
		{"", false},
		{"../secrets", false},
		{"a/../b", false},
		{"/abs", false},
		{"trailing/", false},
		{"with space", false},
		{"a/b/c/d/e/f/g/h/i", false},
	}

	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			err := ValidateFolder(tt.folder)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInput)
		})
	}
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("avatars/0b6c.png"))
	assert.NoError(t, ValidateKey("loose.txt"))
	assert.ErrorIs(t, ValidateKey(""), ErrInput)
	assert.ErrorIs(t, ValidateKey("avatars/.hidden"), ErrInput)
	assert.ErrorIs(t, ValidateKey("../avatars/x.png"), ErrInput)
	assert.ErrorIs(t, ValidateKey("avatars/"), ErrInput)
}

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		ct       string
		size     int64
		wantRule ValidationRule
	}{
		{"avatar ok", ProfileAvatar, "image/png", 1024, ""},
		{"avatar at limit", ProfileAvatar, "image/webp", 5 << 20, ""},
		{"avatar too big", ProfileAvatar, "image/jpeg", 5<<20 + 1, RuleMaxSize},
		{"avatar wrong type", ProfileAvatar, "image/gif", 10, RuleContentType},
		{"thumbnail wrong type", ProfileThumbnail, "application/pdf", 10, RuleContentType},
		{"video ok", ProfileVideo, "video/webm", 99 << 20, ""},
		{"video too big", ProfileVideo, "video/mp4", 100<<20 + 1, RuleMaxSize},
		{"document docx", ProfileDocument, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", 1, ""},
		{"document too big", ProfileDocument, "text/plain", 20<<20 + 1, RuleMaxSize},
		{"type checked first", ProfileDocument, "image/png", 30 << 20, RuleContentType},
		{"generic anything", ProfileGeneric, "application/x-whatever", 1 << 40, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate(tt.ct, tt.size)
			if tt.wantRule == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.wantRule, ve.Rule)
			assert.Equal(t, tt.profile.Name, ve.Profile)
		})
	}
}

func TestLookupProfile(t *testing.T) {
	p, ok := LookupProfile("video")
	require.True(t, ok)
	assert.Equal(t, FolderVideos, p.Folder)

	_, ok = LookupProfile("generic")
	assert.False(t, ok)
	assert.False(t, ProfileGeneric.Validates())
}

func TestFolderForField(t *testing.T) {
	assert.Equal(t, FolderAvatars, FolderForField("avatar"))
	assert.Equal(t, FolderThumbnails, FolderForField("thumbnail"))
	assert.Equal(t, FolderVideos, FolderForField("video"))
	assert.Equal(t, FolderDocuments, FolderForField("document"))
	assert.Equal(t, FolderImages, FolderForField("file"))
	assert.Equal(t, FolderImages, FolderForField(""))
}

func TestMergeMetadata_ReservedKeysWin(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got := MergeMetadata("Résumé.pdf", at, map[string]string{
		"course":       "go-101",
		"originalName": "spoofed",
		"UPLOADEDAT":   "never",
	})

	assert.Equal(t, map[string]string{
		"course":         "go-101",
		MetaOriginalName: "Resume.pdf",
		MetaUploadedAt:   "2026-03-01T10:00:00Z",
	}, got)
}

func TestStoredMetadata(t *testing.T) {
	got := StoredMetadata(map[string]string{
		"originalname": "a.png",
		"UploadedAt":   "2026-03-01T10:00:00Z",
		"CourseId":     "c-1",
	})

	assert.Equal(t, map[string]string{
		MetaOriginalName: "a.png",
		MetaUploadedAt:   "2026-03-01T10:00:00Z",
		"courseid":       "c-1",
	}, got)
	assert.Empty(t, StoredMetadata(nil))
}

func TestSanitizeOriginalName(t *testing.T) {
	assert.Equal(t, "file", SanitizeOriginalName(""))
	assert.Equal(t, "file", SanitizeOriginalName(".."))
	assert.Equal(t, "passwd", SanitizeOriginalName("../../etc/passwd"))
	assert.Equal(t, "Cafe menu.pdf", SanitizeOriginalName("Café menu.pdf"))
	assert.Equal(t, "__.png", SanitizeOriginalName("猫猫.png"))
}

func TestStoreError_NotFound(t *testing.T) {
	err := error(&StoreError{Op: "head", Key: "a/b.png", Message: "Not Found", NotFound: true})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "head a/b.png: Not Found", err.Error())

	err = &StoreError{Op: "put", Message: "Access Denied"}
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNormalizeListOptions(t *testing.T) {
	assert.Equal(t, MaxListResults, NormalizeListOptions(ListOptions{}).MaxResults)
	assert.Equal(t, MaxListResults, NormalizeListOptions(ListOptions{MaxResults: 5000}).MaxResults)
	assert.Equal(t, 25, NormalizeListOptions(ListOptions{MaxResults: 25, ContinuationToken: "t"}).MaxResults)
}
