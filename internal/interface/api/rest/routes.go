package rest

const (
	// api
	RouteApi    = "/api"
	RouteUpload = RouteApi + "/upload"

	// uploads
	RouteUploadSingle    = RouteUpload + "/single"
	RouteUploadMultiple  = RouteUpload + "/multiple"
	RouteUploadAvatar    = RouteUpload + "/avatar"
	RouteUploadThumbnail = RouteUpload + "/thumbnail"
	RouteUploadVideo     = RouteUpload + "/video"
	RouteUploadDocument  = RouteUpload + "/document"

	// objects; keys are URL-encoded into a single segment
	RouteObject          = RouteUpload + "/:key"
	RouteObjectInfo      = RouteObject + "/info"
	RouteObjectOptimized = RouteObject + "/optimized"
	RouteObjectPresign   = RouteObject + "/presign"
	RouteObjectCopy      = RouteObject + "/copy"
	RouteObjectThumbnail = RouteObject + "/thumbnail"

	RouteList  = RouteUpload + "/list/:folder"
	RouteStats = RouteUpload + "/stats"

	// ops
	RouteHealth  = RouteUpload + "/healthz"
	RouteMetrics = RouteUpload + "/metrics"
)
