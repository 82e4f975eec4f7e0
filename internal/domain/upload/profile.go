package upload

import (
	"fmt"
	"slices"
)

const (
	FolderAvatars    = "avatars"
	FolderThumbnails = "thumbnails"
	FolderVideos     = "videos"
	FolderDocuments  = "documents"
	FolderImages     = "images"
)

const mib = int64(1 << 20)

var imageTypes = []string{"image/jpeg", "image/jpg", "image/png", "image/webp"}

// Profile is a named upload endpoint with its own validation rules.
// A zero MaxBytes or a nil AllowedTypes disables that check.
type Profile struct {
	Name         string
	Folder       string
	AllowedTypes []string
	MaxBytes     int64
}

var (
	ProfileAvatar = Profile{
		Name:         "avatar",
		Folder:       FolderAvatars,
		AllowedTypes: imageTypes,
		MaxBytes:     5 * mib,
	}
	ProfileThumbnail = Profile{
		Name:         "thumbnail",
		Folder:       FolderThumbnails,
		AllowedTypes: imageTypes,
		MaxBytes:     5 * mib,
	}
	ProfileVideo = Profile{
		Name:         "video",
		Folder:       FolderVideos,
		AllowedTypes: []string{"video/mp4", "video/avi", "video/mov", "video/webm"},
		MaxBytes:     100 * mib,
	}
	ProfileDocument = Profile{
		Name:   "document",
		Folder: FolderDocuments,
		AllowedTypes: []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"text/plain",
		},
		MaxBytes: 20 * mib,
	}
	// ProfileGeneric backs /single and /multiple: nothing is enforced and the
	// folder comes from the field name or the caller.
	ProfileGeneric = Profile{Name: "generic"}
)

var profiles = map[string]Profile{
	ProfileAvatar.Name:    ProfileAvatar,
	ProfileThumbnail.Name: ProfileThumbnail,
	ProfileVideo.Name:     ProfileVideo,
	ProfileDocument.Name:  ProfileDocument,
}

// LookupProfile returns a validating profile by name.
func LookupProfile(name string) (Profile, bool) {
	p, ok := profiles[name]
	return p, ok
}

func (p Profile) Validates() bool { return len(p.AllowedTypes) > 0 || p.MaxBytes > 0 }

// Validate checks type before size, so a wrong-typed oversized file reports
// the type rule.
func (p Profile) Validate(contentType string, size int64) error {
	if len(p.AllowedTypes) > 0 && !slices.Contains(p.AllowedTypes, contentType) {
		return &ValidationError{
			Profile: p.Name,
			Rule:    RuleContentType,
			Message: fmt.Sprintf("invalid file type %q for %s: allowed types are %v", contentType, p.Name, p.AllowedTypes),
		}
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return &ValidationError{
			Profile: p.Name,
			Rule:    RuleMaxSize,
			Message: fmt.Sprintf("file too large for %s: %d bytes exceeds maximum of %d MB", p.Name, size, p.MaxBytes/mib),
		}
	}
	return nil
}

// FolderForField maps a multipart field name to its logical folder.
func FolderForField(field string) string {
	switch field {
	case "avatar":
		return FolderAvatars
	case "thumbnail":
		return FolderThumbnails
	case "video":
		return FolderVideos
	case "document":
		return FolderDocuments
	default:
		return FolderImages
	}
}
