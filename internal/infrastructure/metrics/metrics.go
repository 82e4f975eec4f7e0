package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// result label values
const (
	Requests        = "app_requests_total"
	FilesUploaded   = "files_uploaded_total"
	UploadsRejected = "uploads_rejected_total"
	UploadsFailed   = "uploads_failed_total"
	FilesDeleted    = "files_deleted_total"
	DeleteRequests  = "delete_requests_consumed_total"
	EventsDropped   = "events_dropped_total"
	EventsPublished = "events_published_total"
)

func NewCounter() *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmsupload",
			Name:      "general_counters",
		},
		[]string{"result"})
}

// NewTestCounter is an unregistered counter for tests, which would otherwise
// collide on the default registry.
func NewTestCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lmsupload",
			Name:      "general_counters",
		},
		[]string{"result"})
}
