package staging

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
)

// field values are small form inputs (folder, options, profile)
const maxFieldBytes = 1 << 16

var ErrNotMultipart = errors.New("request is not multipart/form-data")

type (
	// File is one uploaded part written to local disk. It lives only for the
	// duration of the request that produced it.
	File struct {
		FieldName    string
		OriginalName string
		ContentType  string
		Size         int64
		Path         string
	}

	Form struct {
		Fields map[string]string
		Files  []*File
	}

	Stager struct {
		dir             string
		maxRequestBytes int64
	}
)

func New(dir string, maxRequestBytes int64) *Stager {
	return &Stager{dir: dir, maxRequestBytes: maxRequestBytes}
}

// Parse streams a multipart body to staging files. On error every file
// staged so far has already been removed.
func (s *Stager) Parse(w http.ResponseWriter, r *http.Request) (*Form, error) {
	ct := r.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "multipart/form-data" {
		return nil, ErrNotMultipart
	}
	if s.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("multipart reader: %w", err)
	}

	form := &Form{Fields: make(map[string]string)}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return form, nil
		}
		if err != nil {
			_ = Cleanup(form.Files...)
			return nil, fmt.Errorf("next part: %w", err)
		}

		if part.FileName() == "" {
			if err = s.readField(form, part); err != nil {
				_ = Cleanup(form.Files...)
				return nil, err
			}
			continue
		}

		f, err := s.stage(part)
		if err != nil {
			_ = Cleanup(form.Files...)
			return nil, err
		}
		form.Files = append(form.Files, f)
	}
}

func (s *Stager) readField(form *Form, part *multipart.Part) error {
	defer part.Close()

	b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
	if err != nil {
		return fmt.Errorf("read field %q: %w", part.FormName(), err)
	}
	if len(b) > maxFieldBytes {
		return fmt.Errorf("field %q exceeds %d bytes", part.FormName(), maxFieldBytes)
	}
	// first value wins, as with url.Values.Get
	if _, ok := form.Fields[part.FormName()]; !ok {
		form.Fields[part.FormName()] = string(b)
	}
	return nil
}

func (s *Stager) stage(part *multipart.Part) (*File, error) {
	defer part.Close()

	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}
	f := &File{
		FieldName:    part.FormName(),
		OriginalName: part.FileName(),
		ContentType:  partContentType(part),
		Path:         tmp.Name(),
	}

	n, err := io.Copy(tmp, part)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = Cleanup(f)
		return nil, fmt.Errorf("write staging file: %w", err)
	}
	f.Size = n

	return f, nil
}

func partContentType(part *multipart.Part) string {
	ct := strings.TrimSpace(part.Header.Get("Content-Type"))
	if ct == "" {
		return "application/octet-stream"
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// Open returns the staged content for reading.
func (f *File) Open() (*os.File, error) { return os.Open(f.Path) }

// Cleanup removes staged files. Nil entries and already-removed paths are
// skipped, so it is safe to call more than once.
func Cleanup(files ...*File) error {
	var errs []error
	for _, f := range files {
		if f == nil || f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
