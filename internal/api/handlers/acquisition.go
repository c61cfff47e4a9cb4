package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/resotrack/internal/acquisition"
	"github.com/RMahshie/resotrack/internal/processing"
	"github.com/RMahshie/resotrack/internal/recording"
	"github.com/RMahshie/resotrack/internal/repository"
	"github.com/RMahshie/resotrack/pkg/models"
)

// AcquisitionHandler handles acquisition control and recording requests
type AcquisitionHandler struct {
	svc      processing.AcquisitionService
	recorder recording.Service
}

// NewAcquisitionHandler creates a new acquisition handler. recorder may be
// nil when no database is configured.
func NewAcquisitionHandler(svc processing.AcquisitionService, recorder recording.Service) *AcquisitionHandler {
	return &AcquisitionHandler{
		svc:      svc,
		recorder: recorder,
	}
}

// GetHeaders returns the output column names
func (h *AcquisitionHandler) GetHeaders(ctx context.Context, _ *struct{}) (*models.HeadersResponse, error) {
	resp := &models.HeadersResponse{}
	resp.Body.Headers = h.svc.Headers()
	return resp, nil
}

// GetSegments returns the current segment geometry
func (h *AcquisitionHandler) GetSegments(ctx context.Context, _ *struct{}) (*models.SegmentsResponse, error) {
	status := h.svc.Status()
	return &models.SegmentsResponse{
		Body: models.SegmentsResponseBody{
			Segments:        status.Segments,
			BandwidthFactor: status.BandwidthFactor,
			TrackingEnabled: status.TrackingEnabled,
			Pending:         status.Pending,
			Cycles:          status.Cycles,
			Accepted:        status.Accepted,
		},
	}, nil
}

// GetLatestSample returns the most recent accepted sample
func (h *AcquisitionHandler) GetLatestSample(ctx context.Context, req *models.LatestSampleRequest) (*models.LatestSampleResponse, error) {
	sample, ok := h.svc.Latest()
	if !ok {
		return nil, huma.Error404NotFound("No sample acquired yet")
	}

	segments := h.svc.Status().Segments
	bw := models.OptionalFloats(sample.BW)
	f0 := models.OptionalFloats(sample.F0)
	q := models.OptionalFloats(sample.Q)
	il := models.OptionalFloats(sample.IL)

	results := make([]models.SegmentResult, sample.Len())
	for i := range results {
		result := models.SegmentResult{
			Bandwidth:     bw[i],
			Frequency:     f0[i],
			Q:             q[i],
			InsertionLoss: il[i],
		}
		if i < len(segments) {
			result.Name = segments[i].Name
		}
		if req.Traces && sample.Freq != nil && sample.Freq[i] != nil {
			result.Trace = models.TracePoints(sample.Freq[i], sample.Ampl[i])
		}
		results[i] = result
	}

	return &models.LatestSampleResponse{
		Body: models.LatestSampleResponseBody{
			ElapsedSeconds: sample.Elapsed.Seconds(),
			Segments:       results,
		},
	}, nil
}

// SetSegmentEnabled queues enabling or disabling a segment
func (h *AcquisitionHandler) SetSegmentEnabled(ctx context.Context, req *models.SetSegmentEnabledRequest) (*models.AcceptedResponse, error) {
	log.Info().Int("index", req.Index).Bool("enabled", req.Body.Enabled).Msg("Segment change requested")
	if err := h.svc.SetSegmentEnabled(req.Index, req.Body.Enabled); err != nil {
		if errors.Is(err, acquisition.ErrSegmentIndex) {
			return nil, huma.Error404NotFound("Segment not found", err)
		}
		return nil, huma.Error500InternalServerError("Failed to queue segment change", err)
	}
	return h.accepted("Segment change queued"), nil
}

// SetBandwidthFactor queues a bandwidth factor override
func (h *AcquisitionHandler) SetBandwidthFactor(ctx context.Context, req *models.SetBandwidthFactorRequest) (*models.AcceptedResponse, error) {
	factor := req.Body.Factor
	log.Info().Float64("factor", factor).Msg("Bandwidth factor override requested")
	if err := h.svc.SetBandwidthFactorOverride(&factor); err != nil {
		return nil, huma.Error400BadRequest("Invalid bandwidth factor", err)
	}
	return h.accepted("Bandwidth factor override queued"), nil
}

// ClearBandwidthFactor queues removal of the bandwidth factor override
func (h *AcquisitionHandler) ClearBandwidthFactor(ctx context.Context, _ *struct{}) (*models.AcceptedResponse, error) {
	if err := h.svc.SetBandwidthFactorOverride(nil); err != nil {
		return nil, huma.Error500InternalServerError("Failed to clear bandwidth factor", err)
	}
	return h.accepted("Bandwidth factor override cleared"), nil
}

// SetTrackingEnabled queues switching the tracking controller
func (h *AcquisitionHandler) SetTrackingEnabled(ctx context.Context, req *models.SetTrackingEnabledRequest) (*models.AcceptedResponse, error) {
	log.Info().Bool("enabled", req.Body.Enabled).Msg("Tracking switch requested")
	if err := h.svc.SetTrackingOverride(req.Body.Enabled); err != nil {
		return nil, huma.Error500InternalServerError("Failed to queue tracking change", err)
	}
	return h.accepted("Tracking change queued"), nil
}

// ResetTracking queues restoring configured windows
func (h *AcquisitionHandler) ResetTracking(ctx context.Context, _ *struct{}) (*models.AcceptedResponse, error) {
	if err := h.svc.ResetTracking(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to queue tracking reset", err)
	}
	return h.accepted("Tracking reset queued"), nil
}

func (h *AcquisitionHandler) accepted(message string) *models.AcceptedResponse {
	resp := &models.AcceptedResponse{}
	resp.Body.Message = message
	resp.Body.Pending = h.svc.Status().Pending
	return resp
}

// StartRecording opens a recording of accepted samples
func (h *AcquisitionHandler) StartRecording(ctx context.Context, req *models.StartRecordingRequest) (*models.RecordingResponse, error) {
	if h.recorder == nil {
		return nil, huma.Error503ServiceUnavailable("Recording requires a database")
	}

	rec, err := h.recorder.Start(ctx, req.Body.Name, h.svc.Headers())
	if err != nil {
		if errors.Is(err, recording.ErrRecordingActive) {
			return nil, huma.Error409Conflict("A recording is already active", err)
		}
		return nil, huma.Error500InternalServerError("Failed to start recording", err)
	}
	return &models.RecordingResponse{Body: models.RecordingResponseBody{Recording: *rec}}, nil
}

// StopRecording closes the active recording
func (h *AcquisitionHandler) StopRecording(ctx context.Context, _ *struct{}) (*models.RecordingResponse, error) {
	if h.recorder == nil {
		return nil, huma.Error503ServiceUnavailable("Recording requires a database")
	}

	rec, err := h.recorder.Stop(ctx)
	if err != nil {
		if errors.Is(err, recording.ErrNoRecording) {
			return nil, huma.Error409Conflict("No active recording", err)
		}
		return nil, huma.Error500InternalServerError("Failed to stop recording", err)
	}
	return &models.RecordingResponse{Body: models.RecordingResponseBody{Recording: *rec}}, nil
}

// GetRecording returns recording metadata and its archive URL
func (h *AcquisitionHandler) GetRecording(ctx context.Context, req *models.RecordingRequest) (*models.RecordingResponse, error) {
	if h.recorder == nil {
		return nil, huma.Error503ServiceUnavailable("Recording requires a database")
	}

	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("Invalid recording ID", err)
	}

	rec, url, err := h.recorder.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, huma.Error404NotFound("Recording not found", err)
		}
		return nil, huma.Error500InternalServerError("Failed to get recording", err)
	}
	return &models.RecordingResponse{
		Body: models.RecordingResponseBody{Recording: *rec, DownloadURL: url},
	}, nil
}
