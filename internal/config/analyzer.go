package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/RMahshie/resotrack/pkg/models"
)

// SegmentEntry is one named segment in the analyzer file. Segments are a
// list rather than a map because viper folds map keys to lower case.
type SegmentEntry struct {
	Name string `mapstructure:"name"`

	models.SegmentSpec `mapstructure:",squash"`
}

// AnalyzerFile is the on-disk analyzer configuration
type AnalyzerFile struct {
	Segments             []SegmentEntry `mapstructure:"segments"`
	TrackFrequency       bool           `mapstructure:"track_frequency"`
	TrackSpan            bool           `mapstructure:"track_span"`
	UseMarkers           bool           `mapstructure:"use_markers"`
	BandwidthFactor      float64        `mapstructure:"bandwidth_factor"`
	CenterErrorTolerance float64        `mapstructure:"center_error_tolerance"`
	SpanErrorTolerance   float64        `mapstructure:"span_error_tolerance"`
	// RecordDuration stops a recording automatically once exceeded, zero disables
	RecordDuration time.Duration `mapstructure:"record_duration"`
}

// LoadAnalyzer reads an analyzer file. The format follows the extension
// (yaml, json or toml).
func LoadAnalyzer(path string) (*AnalyzerFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("bandwidth_factor", models.DefaultBandwidthFactor)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read analyzer config: %w", err)
	}

	var file AnalyzerFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer config: %w", err)
	}
	if file.RecordDuration < 0 {
		return nil, fmt.Errorf("record_duration must not be negative, got %s", file.RecordDuration)
	}
	return &file, nil
}

// AnalyzerConfig converts the file into a session setup input. Field
// validation is left to the session so that it happens in one place.
func (f *AnalyzerFile) AnalyzerConfig() (models.AnalyzerConfig, error) {
	segments := make(map[string]models.SegmentSpec, len(f.Segments))
	for i, s := range f.Segments {
		if _, dup := segments[s.Name]; dup {
			return models.AnalyzerConfig{}, fmt.Errorf("segment %d: duplicate name %q", i, s.Name)
		}
		segments[s.Name] = s.SegmentSpec
	}

	return models.AnalyzerConfig{
		Segments:             segments,
		TrackFrequency:       f.TrackFrequency,
		TrackSpan:            f.TrackSpan,
		UseMarkers:           f.UseMarkers,
		BandwidthFactor:      f.BandwidthFactor,
		CenterErrorTolerance: f.CenterErrorTolerance,
		SpanErrorTolerance:   f.SpanErrorTolerance,
	}, nil
}
