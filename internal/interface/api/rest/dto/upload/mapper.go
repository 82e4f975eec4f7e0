package upload

import (
	"lms-upload-api/internal/domain/upload"
)

func ToResponseFile(o upload.UploadedObject) File {
	return File{
		ID:           o.Key,
		Key:          o.Key,
		URL:          o.URL,
		Format:       o.Format(),
		Size:         o.SizeBytes,
		Width:        o.Width,
		Height:       o.Height,
		CreatedAt:    o.CreatedAt,
		Folder:       o.Folder,
		OriginalName: o.OriginalName,
		ContentType:  o.ContentType,
		ETag:         o.ETag,
		VersionID:    o.VersionID,
	}
}

func ToResponseBatch(res *upload.BatchResult) BatchData {
	out := BatchData{
		Uploaded: make([]File, 0, len(res.Uploaded)),
		Errors:   make([]FailedFile, 0, len(res.Failed)),
	}
	for _, o := range res.Uploaded {
		out.Uploaded = append(out.Uploaded, ToResponseFile(*o))
	}
	for _, f := range res.Failed {
		out.Errors = append(out.Errors, FailedFile{OriginalName: f.OriginalName, Error: f.Err.Error()})
	}

	return out
}

func ToResponseInfo(i upload.ObjectInfo) Info {
	md := i.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return Info{
		Key:          i.Key,
		Size:         i.Size,
		ContentType:  i.ContentType,
		LastModified: i.LastModified,
		ETag:         i.ETag,
		Metadata:     md,
	}
}

func ToResponseList(p upload.ListPage) ListData {
	files := make([]ListedFile, len(p.Files))
	for idx, f := range p.Files {
		files[idx] = ListedFile{
			Key:          f.Key,
			Size:         f.Size,
			LastModified: f.LastModified,
			ETag:         f.ETag,
			URL:          f.URL,
		}
	}

	return ListData{
		Files:                 files,
		IsTruncated:           p.IsTruncated,
		NextContinuationToken: p.NextContinuationToken,
	}
}

func ToResponseStats(s upload.Stats) Stats {
	folders := s.Folders
	if folders == nil {
		folders = map[string]int64{}
	}
	return Stats{TotalFiles: s.TotalFiles, TotalSize: s.TotalSize, Folders: folders}
}
