package api

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RMahshie/resotrack/internal/api/handlers"
	"github.com/RMahshie/resotrack/internal/processing"
	"github.com/RMahshie/resotrack/internal/recording"
)

// RegisterRoutes sets up all API routes
func RegisterRoutes(router chi.Router, api huma.API, svc processing.AcquisitionService, recorder recording.Service) {
	h := handlers.NewAcquisitionHandler(svc, recorder)

	router.Handle("/metrics", promhttp.Handler())

	huma.Register(api, huma.Operation{
		OperationID: "getHeaders",
		Method:      http.MethodGet,
		Path:        "/api/headers",
		Summary:     "Get output headers",
		Description: "Returns the column names of a formatted sample",
		Tags:        []string{"Acquisition"},
	}, h.GetHeaders)

	huma.Register(api, huma.Operation{
		OperationID: "getSegments",
		Method:      http.MethodGet,
		Path:        "/api/segments",
		Summary:     "Get segments",
		Description: "Returns the current segment geometry and tracking state",
		Tags:        []string{"Acquisition"},
	}, h.GetSegments)

	huma.Register(api, huma.Operation{
		OperationID: "getLatestSample",
		Method:      http.MethodGet,
		Path:        "/api/samples/latest",
		Summary:     "Get latest sample",
		Description: "Returns the most recent accepted sample",
		Tags:        []string{"Acquisition"},
	}, h.GetLatestSample)

	huma.Register(api, huma.Operation{
		OperationID:   "setSegmentEnabled",
		Method:        http.MethodPut,
		Path:          "/api/segments/{index}/enabled",
		Summary:       "Enable or disable a segment",
		Description:   "Queues the change for the next acquisition cycle",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusAccepted,
	}, h.SetSegmentEnabled)

	huma.Register(api, huma.Operation{
		OperationID:   "setBandwidthFactor",
		Method:        http.MethodPut,
		Path:          "/api/tracking/bandwidth-factor",
		Summary:       "Override the bandwidth factor",
		Description:   "Queues a span to bandwidth ratio override for the next acquisition cycle",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusAccepted,
	}, h.SetBandwidthFactor)

	huma.Register(api, huma.Operation{
		OperationID:   "clearBandwidthFactor",
		Method:        http.MethodDelete,
		Path:          "/api/tracking/bandwidth-factor",
		Summary:       "Clear the bandwidth factor override",
		Description:   "Queues a return to the configured span to bandwidth ratio",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusAccepted,
	}, h.ClearBandwidthFactor)

	huma.Register(api, huma.Operation{
		OperationID:   "setTrackingEnabled",
		Method:        http.MethodPut,
		Path:          "/api/tracking/enabled",
		Summary:       "Switch tracking",
		Description:   "Queues enabling or disabling the tracking controller",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusAccepted,
	}, h.SetTrackingEnabled)

	huma.Register(api, huma.Operation{
		OperationID:   "resetTracking",
		Method:        http.MethodPost,
		Path:          "/api/tracking/reset",
		Summary:       "Reset tracking",
		Description:   "Queues restoring every segment's configured center and span",
		Tags:          []string{"Tracking"},
		DefaultStatus: http.StatusAccepted,
	}, h.ResetTracking)

	huma.Register(api, huma.Operation{
		OperationID:   "startRecording",
		Method:        http.MethodPost,
		Path:          "/api/recordings",
		Summary:       "Start a recording",
		Description:   "Persists every accepted sample until stopped",
		Tags:          []string{"Recording"},
		DefaultStatus: http.StatusCreated,
	}, h.StartRecording)

	huma.Register(api, huma.Operation{
		OperationID: "stopRecording",
		Method:      http.MethodPost,
		Path:        "/api/recordings/stop",
		Summary:     "Stop the active recording",
		Description: "Closes the active recording and exports it as CSV",
		Tags:        []string{"Recording"},
	}, h.StopRecording)

	huma.Register(api, huma.Operation{
		OperationID: "getRecording",
		Method:      http.MethodGet,
		Path:        "/api/recordings/{id}",
		Summary:     "Get a recording",
		Description: "Returns recording metadata and a download URL once archived",
		Tags:        []string{"Recording"},
	}, h.GetRecording)
}
