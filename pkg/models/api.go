package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// HeadersResponse lists the output columns of a formatted sample
type HeadersResponse struct {
	Body struct {
		Headers []string `json:"headers" doc:"Frequency, Q factor and insertion loss columns, grouped by quantity"`
	}
}

// SegmentsResponseBody is the current sweep geometry and controller state
type SegmentsResponseBody struct {
	Segments        []Segment `json:"segments" doc:"Segments in ascending center frequency order"`
	BandwidthFactor float64   `json:"bandwidth_factor" doc:"Effective span to bandwidth ratio"`
	TrackingEnabled bool      `json:"tracking_enabled" doc:"Master tracking switch"`
	Pending         int       `json:"pending" doc:"Queued changes applied at the next cycle"`
	Cycles          uint64    `json:"cycles" doc:"Acquisition cycles run"`
	Accepted        uint64    `json:"accepted" doc:"Cycles that produced a sample"`
}

// SegmentsResponse wraps SegmentsResponseBody
type SegmentsResponse struct {
	Body SegmentsResponseBody
}

// SegmentResult is one segment's slot of a sample. Nil values mark a
// disabled segment.
type SegmentResult struct {
	Name          string           `json:"name"`
	Bandwidth     *float64         `json:"bandwidth" doc:"-3 dB bandwidth in Hz"`
	Frequency     *float64         `json:"frequency" doc:"Resonant frequency in Hz"`
	Q             *float64         `json:"q" doc:"Loaded quality factor"`
	InsertionLoss *float64         `json:"insertion_loss" doc:"Peak transmission in dB"`
	Trace         []FrequencyPoint `json:"trace,omitempty" doc:"Measured amplitude trace, raw sweep mode only"`
}

// LatestSampleRequest selects whether traces are included
type LatestSampleRequest struct {
	Traces bool `query:"traces" doc:"Include measured traces"`
}

// LatestSampleResponseBody is the most recent accepted sample
type LatestSampleResponseBody struct {
	ElapsedSeconds float64         `json:"elapsed_seconds" doc:"Seconds since acquisition started"`
	Segments       []SegmentResult `json:"segments"`
}

// LatestSampleResponse wraps LatestSampleResponseBody
type LatestSampleResponse struct {
	Body LatestSampleResponseBody
}

// SetSegmentEnabledRequest enables or disables one segment
type SetSegmentEnabledRequest struct {
	Index int `path:"index" minimum:"0" doc:"Segment index in ascending center frequency order"`
	Body  struct {
		Enabled bool `json:"enabled" doc:"Whether the segment is measured"`
	}
}

// SetBandwidthFactorRequest overrides the bandwidth factor
type SetBandwidthFactorRequest struct {
	Body struct {
		Factor float64 `json:"factor" exclusiveMinimum:"0" doc:"Span to bandwidth ratio"`
	}
}

// SetTrackingEnabledRequest switches the tracking controller
type SetTrackingEnabledRequest struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Master tracking switch"`
	}
}

// AcceptedResponse acknowledges a queued change
type AcceptedResponse struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation message"`
		Pending int    `json:"pending" doc:"Queued changes applied at the next cycle"`
	}
}

// StartRecordingRequest opens a recording
type StartRecordingRequest struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"64" pattern:"^[A-Za-z0-9_-]+$" required:"true" doc:"Recording name, used in the archive key"`
	}
}

// RecordingRequest addresses a stored recording
type RecordingRequest struct {
	ID string `path:"id" doc:"Recording ID"`
}

// RecordingResponseBody describes a recording
type RecordingResponseBody struct {
	Recording
	DownloadURL string `json:"download_url,omitempty" doc:"Pre-signed archive URL once exported"`
}

// RecordingResponse wraps RecordingResponseBody
type RecordingResponse struct {
	Body RecordingResponseBody
}
