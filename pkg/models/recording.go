package models

import "time"

// Recording is a named, persisted run of accepted samples
type Recording struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Headers    []string   `json:"headers"`
	StartedAt  time.Time  `json:"started_at"`
	StoppedAt  *time.Time `json:"stopped_at,omitempty"`
	ArchiveKey *string    `json:"archive_key,omitempty"`
}

// Active reports whether the recording is still accepting rows
func (r *Recording) Active() bool {
	return r.StoppedAt == nil
}

// RecordedRow is one persisted line of a recording: seconds since the
// recording started followed by the formatted sample values
type RecordedRow struct {
	RecordingID    string    `json:"recording_id"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Values         []float64 `json:"values"`
	CreatedAt      time.Time `json:"created_at"`
}
