package upload

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxExtLen          = 16
	maxFolderSegments  = 8
	maxOriginalNameLen = 255
)

var (
	extRe     = regexp.MustCompile(`^[a-z0-9]+$`)
	segmentRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	leafRe    = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)
)

// NewKey builds "{folder}/{uuid}.{ext}". Only the extension comes from the
// client and it is reduced to [a-z0-9]; when nothing usable is left the key
// has no extension.
func NewKey(folder, originalName string) string {
	id := uuid.NewString()
	if ext := cleanExt(originalName); ext != "" {
		return folder + "/" + id + "." + ext
	}
	return folder + "/" + id
}

func cleanExt(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(path.Base(name)), "."))
	if ext == "" || len(ext) > maxExtLen || !extRe.MatchString(ext) {
		return ""
	}
	return ext
}

// ExtensionOf returns the extension of a key's last segment, without the dot.
func ExtensionOf(key string) string {
	return strings.TrimPrefix(path.Ext(path.Base(key)), ".")
}

// ValidateFolder accepts "/"-separated segments of [A-Za-z0-9_-].
func ValidateFolder(folder string) error {
	if folder == "" {
		return InputError("folder is required")
	}
	segs := strings.Split(folder, "/")
	if len(segs) > maxFolderSegments {
		return InputError("folder is nested too deeply")
	}
	for _, s := range segs {
		if !segmentRe.MatchString(s) {
			return InputError("invalid folder %q", folder)
		}
	}
	return nil
}

// ValidateKey accepts a folder path followed by a leaf that may carry dots
// but never starts with one.
func ValidateKey(key string) error {
	if key == "" {
		return InputError("key is required")
	}
	idx := strings.LastIndex(key, "/")
	if idx < 0 {
		if !leafRe.MatchString(key) {
			return InputError("invalid key %q", key)
		}
		return nil
	}
	if err := ValidateFolder(key[:idx]); err != nil {
		return InputError("invalid key %q", key)
	}
	if !leafRe.MatchString(key[idx+1:]) {
		return InputError("invalid key %q", key)
	}
	return nil
}

// SanitizeOriginalName folds a client file name to printable ASCII so it can
// travel as S3 user metadata. It is informational only.
func SanitizeOriginalName(original string) string {
	s := strings.TrimSpace(strings.ReplaceAll(original, "\\", "/"))
	s = path.Base(s)
	if s == "." || s == ".." || s == "/" || s == "" {
		return "file"
	}

	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	s, _, _ = transform.String(t, s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s = b.String()

	if len(s) > maxOriginalNameLen {
		s = s[:maxOriginalNameLen]
	}
	return s
}

func isMn(r rune) bool { return unicode.Is(unicode.Mn, r) }

func isReservedMetaKey(k string) bool {
	return strings.EqualFold(k, MetaOriginalName) || strings.EqualFold(k, MetaUploadedAt)
}
