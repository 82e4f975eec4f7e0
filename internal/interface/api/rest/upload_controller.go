package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lms-upload-api/internal/application/ports"
	"lms-upload-api/internal/domain/upload"
	"lms-upload-api/internal/infrastructure/jwt"
	"lms-upload-api/internal/infrastructure/staging"
	dto "lms-upload-api/internal/interface/api/rest/dto/upload"
	"lms-upload-api/internal/interface/api/rest/middleware"
	"lms-upload-api/internal/interface/api/rest/response"
	"lms-upload-api/internal/interface/api/rest/validator"
)

const (
	fieldFolder  = "folder"
	fieldOptions = "options"
	fieldProfile = "profile"
	fieldDestKey = "destinationKey"
)

type UploadController struct {
	uploadService ports.UploadService
	stager        *staging.Stager
	logger        *zap.Logger
}

func NewUploadController(
	r *gin.Engine,
	uploadService ports.UploadService,
	stager *staging.Stager,
	logger *zap.Logger,
	jwtService *jwt.Service,
) *UploadController {
	uc := &UploadController{
		uploadService: uploadService,
		stager:        stager,
		logger:        logger,
	}

	auth := middleware.AuthMiddleware(jwtService)
	admin := middleware.RequireRole(jwt.RoleAdmin)

	r.POST(RouteUploadSingle, auth, admin, uc.UploadSingleHandler)
	r.POST(RouteUploadMultiple, auth, admin, uc.UploadMultipleHandler)
	r.POST(RouteUploadAvatar, auth, admin, uc.UploadAvatarHandler)
	r.POST(RouteUploadThumbnail, auth, admin, uc.UploadThumbnailHandler)
	r.POST(RouteUploadVideo, auth, admin, uc.UploadVideoHandler)
	r.POST(RouteUploadDocument, auth, admin, uc.UploadDocumentHandler)

	r.DELETE(RouteObject, auth, admin, uc.DeleteHandler)
	r.PUT(RouteObject, auth, admin, uc.UpdateMetadataHandler)
	r.POST(RouteObjectCopy, auth, admin, uc.CopyHandler)
	r.POST(RouteObjectThumbnail, auth, admin, uc.GenerateThumbnailHandler)

	r.GET(RouteObjectInfo, uc.InfoHandler)
	r.GET(RouteObjectOptimized, uc.OptimizedURLHandler)
	r.GET(RouteObjectPresign, uc.PresignHandler)
	r.GET(RouteList, uc.ListHandler)
	r.GET(RouteStats, uc.StatsHandler)

	// unmatched requests still get the envelope; an unencoded slash in a
	// key is the usual way to end up here
	r.HandleMethodNotAllowed = true
	r.NoRoute(uc.NoRouteHandler)
	r.NoMethod(uc.NoMethodHandler)

	return uc
}

func (uc *UploadController) NoRouteHandler(c *gin.Context) {
	response.Error(c, http.StatusNotFound, "Route not found", nil)
}

func (uc *UploadController) NoMethodHandler(c *gin.Context) {
	response.Error(c, http.StatusMethodNotAllowed, "Method not allowed", nil)
}

func (uc *UploadController) UploadSingleHandler(c *gin.Context) {
	uc.uploadOne(c, upload.ProfileGeneric, true)
}

func (uc *UploadController) UploadAvatarHandler(c *gin.Context) {
	uc.uploadOne(c, upload.ProfileAvatar, false)
}

func (uc *UploadController) UploadThumbnailHandler(c *gin.Context) {
	uc.uploadOne(c, upload.ProfileThumbnail, false)
}

func (uc *UploadController) UploadVideoHandler(c *gin.Context) {
	uc.uploadOne(c, upload.ProfileVideo, false)
}

func (uc *UploadController) UploadDocumentHandler(c *gin.Context) {
	uc.uploadOne(c, upload.ProfileDocument, false)
}

// uploadOne stores the first file part. Only the generic endpoint honours a
// caller folder; profiles always write to their own.
func (uc *UploadController) uploadOne(c *gin.Context, profile upload.Profile, callerFolder bool) {
	form, ok := uc.parseForm(c)
	if !ok {
		return
	}
	defer uc.cleanup(form.Files)

	if len(form.Files) == 0 {
		uc.logger.Warn("upload without file", zap.String("profile", profile.Name))
		response.Error(c, http.StatusBadRequest, "No file uploaded", nil)
		return
	}

	opts, err := validator.ParseUploadOptions(form.Fields[fieldOptions])
	if err != nil {
		uc.fail(c, "Upload failed", err)
		return
	}

	folder := ""
	if callerFolder {
		folder = form.Fields[fieldFolder]
	}

	obj, err := uc.uploadService.Upload(c.Request.Context(), form.Files[0], folder, profile, opts)
	if err != nil {
		uc.fail(c, "Upload failed", err)
		return
	}

	response.Success(c, http.StatusCreated, "File uploaded successfully", dto.FileData{
		File: dto.ToResponseFile(*obj),
	})
}

// UploadMultipleHandler answers 200 whatever the per-file outcome; callers
// read both lists.
func (uc *UploadController) UploadMultipleHandler(c *gin.Context) {
	form, ok := uc.parseForm(c)
	if !ok {
		return
	}
	defer uc.cleanup(form.Files)

	if len(form.Files) == 0 {
		uc.logger.Warn("multiple upload without files")
		response.Error(c, http.StatusBadRequest, "No files uploaded", nil)
		return
	}

	profile := upload.ProfileGeneric
	if name := strings.TrimSpace(form.Fields[fieldProfile]); name != "" {
		p, found := upload.LookupProfile(name)
		if !found {
			uc.fail(c, "Upload failed", upload.InputError("unknown profile %q", name))
			return
		}
		profile = p
	}

	res := uc.uploadService.UploadMany(c.Request.Context(), form.Files, form.Fields[fieldFolder], profile)
	for _, f := range res.Failed {
		uc.logger.Warn("UploadMany() file failed",
			zap.String("original_name", f.OriginalName),
			zap.Error(f.Err),
		)
	}

	response.Success(c, http.StatusOK, "Files processed", dto.ToResponseBatch(res))
}

func (uc *UploadController) DeleteHandler(c *gin.Context) {
	key := c.Param("key")
	if err := uc.uploadService.Delete(c.Request.Context(), key); err != nil {
		uc.fail(c, "Delete failed", err)
		return
	}

	response.Success(c, http.StatusOK, "File deleted successfully", dto.Deleted{Deleted: true, Key: key})
}

func (uc *UploadController) InfoHandler(c *gin.Context) {
	info, err := uc.uploadService.Info(c.Request.Context(), c.Param("key"))
	if errors.Is(err, upload.ErrNotFound) {
		uc.logger.Warn("Info() not found", zap.String("key", c.Param("key")))
		response.Error(c, http.StatusNotFound, "File not found", err)
		return
	}
	if err != nil {
		uc.fail(c, "Failed to get file info", err)
		return
	}

	response.Success(c, http.StatusOK, "File info retrieved", dto.ToResponseInfo(*info))
}

func (uc *UploadController) OptimizedURLHandler(c *gin.Context) {
	key := c.Param("key")
	if err := upload.ValidateKey(key); err != nil {
		uc.fail(c, "Failed to build optimized URL", err)
		return
	}
	opts, err := validator.ParseTransformOptions(
		c.Query("width"),
		c.Query("height"),
		c.Query("quality"),
		c.Query("format"),
	)
	if err != nil {
		uc.fail(c, "Failed to build optimized URL", err)
		return
	}

	response.Success(c, http.StatusOK, "Optimized URL generated", dto.Optimized{
		URL: uc.uploadService.OptimizedURL(key, opts),
	})
}

func (uc *UploadController) PresignHandler(c *gin.Context) {
	expires, err := validator.ParseExpiresIn(c.Query("expiresIn"))
	if err != nil {
		uc.fail(c, "Failed to presign URL", err)
		return
	}

	p, err := uc.uploadService.Presign(c.Request.Context(), c.Param("key"), expires)
	if err != nil {
		uc.fail(c, "Failed to presign URL", err)
		return
	}

	response.Success(c, http.StatusOK, "Presigned URL generated", dto.Presigned{
		PresignedURL: p.URL,
		ExpiresIn:    int64(p.ExpiresIn.Seconds()),
	})
}

// CopyHandler takes the destination from a JSON body or a form field.
func (uc *UploadController) CopyHandler(c *gin.Context) {
	src := c.Param("key")

	var req dto.CopyRequest
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		if err := c.ShouldBindJSON(&req); err != nil {
			uc.fail(c, "Copy failed", upload.InputError("body must be JSON with destinationKey"))
			return
		}
	} else {
		req.DestinationKey = c.PostForm(fieldDestKey)
	}
	dst := strings.TrimSpace(req.DestinationKey)
	if dst == "" {
		uc.fail(c, "Copy failed", upload.InputError("destinationKey is required"))
		return
	}

	if err := uc.uploadService.Copy(c.Request.Context(), src, dst); err != nil {
		uc.fail(c, "Copy failed", err)
		return
	}

	response.Success(c, http.StatusOK, "File copied successfully", dto.Copied{
		Copied:         true,
		SourceKey:      src,
		DestinationKey: dst,
	})
}

func (uc *UploadController) ListHandler(c *gin.Context) {
	opts, err := validator.ParseListOptions(c.Query("maxResults"), c.Query("continuationToken"))
	if err != nil {
		uc.fail(c, "Failed to list files", err)
		return
	}

	page, err := uc.uploadService.List(c.Request.Context(), c.Param("folder"), opts)
	if err != nil {
		uc.fail(c, "Failed to list files", err)
		return
	}

	response.Success(c, http.StatusOK, "Files listed", dto.ToResponseList(*page))
}

// UpdateMetadataHandler always succeeds with updated=false.
func (uc *UploadController) UpdateMetadataHandler(c *gin.Context) {
	key := c.Param("key")

	var md map[string]string
	if err := c.ShouldBindJSON(&md); err != nil {
		uc.logger.Debug("UpdateMetadata() body ignored", zap.String("key", key), zap.Error(err))
	}
	if err := uc.uploadService.UpdateMetadata(c.Request.Context(), key, md); err != nil {
		uc.logger.Info("UpdateMetadata() skipped", zap.String("key", key), zap.Error(err))
	}

	response.Success(c, http.StatusOK, "Metadata update is not implemented", dto.Updated{
		Updated: false,
		Key:     key,
	})
}

// GenerateThumbnailHandler always fails; there is no video processor.
func (uc *UploadController) GenerateThumbnailHandler(c *gin.Context) {
	_, err := uc.uploadService.GenerateThumbnail(c.Request.Context(), c.Param("key"))
	if err == nil {
		err = upload.ErrNotImplemented
	}
	uc.logger.Warn("GenerateThumbnail() error", zap.String("key", c.Param("key")), zap.Error(err))

	response.Error(c, http.StatusInternalServerError,
		"Thumbnail generation requires additional video processing service", err)
}

func (uc *UploadController) StatsHandler(c *gin.Context) {
	stats, err := uc.uploadService.Stats(c.Request.Context())
	if err != nil {
		uc.fail(c, "Failed to get storage stats", err)
		return
	}

	response.Success(c, http.StatusOK, "Storage statistics are not tracked yet", dto.ToResponseStats(*stats))
}

func (uc *UploadController) parseForm(c *gin.Context) (*staging.Form, bool) {
	form, err := uc.stager.Parse(c.Writer, c.Request)
	if err == nil {
		return form, true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, staging.ErrNotMultipart):
		uc.logger.Warn("Parse() error", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "Request must be multipart/form-data", err)
	case errors.As(err, &tooLarge):
		uc.logger.Warn("Parse() error", zap.Error(err))
		response.Error(c, http.StatusRequestEntityTooLarge, "Request too large", nil)
	default:
		uc.logger.Error("Parse() error", zap.Error(err))
		response.Error(c, http.StatusBadRequest, "Malformed multipart body", nil)
	}

	return nil, false
}

func (uc *UploadController) cleanup(files []*staging.File) {
	if err := staging.Cleanup(files...); err != nil {
		uc.logger.Error("Cleanup() error", zap.Error(err))
	}
}

// fail maps an error kind to its status. Storage failures forward the
// backend's message; anything unrecognised is reported generically.
func (uc *UploadController) fail(c *gin.Context, message string, err error) {
	var (
		ve *upload.ValidationError
		se *upload.StoreError
	)
	switch {
	case errors.As(err, &ve):
		uc.logger.Warn(message, zap.String("profile", ve.Profile), zap.String("rule", string(ve.Rule)))
		response.Error(c, http.StatusBadRequest, ve.Message, ve)
	case errors.Is(err, upload.ErrInput):
		uc.logger.Warn(message, zap.Error(err))
		response.Error(c, http.StatusBadRequest, message, err)
	case errors.As(err, &se):
		uc.logger.Error(message, zap.Error(err))
		response.Error(c, http.StatusInternalServerError, message, errors.New(se.Message))
	default:
		uc.logger.Error(message, zap.Error(err))
		response.Error(c, http.StatusInternalServerError, "Internal server error", nil)
	}
}
