package acquisition

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/resotrack/pkg/models"
)

func TestBuildSweepConfig_Defaults(t *testing.T) {
	sweep, err := BuildSweepConfig(models.AnalyzerConfig{
		Segments: map[string]models.SegmentSpec{
			"B": segmentSpec(2e9, 1e6, 51),
			"A": segmentSpec(1e9, 2e6, 101),
		},
		TrackFrequency:  true,
		UseMarkers:      true,
		BandwidthFactor: 6,
	})
	require.NoError(t, err)

	require.Len(t, sweep.Segments, 2)
	assert.Equal(t, "A", sweep.Segments[0].Name)
	assert.Equal(t, 1e9, sweep.Segments[0].F0Default)
	assert.Equal(t, 2e6, sweep.Segments[0].SpanDefault)
	assert.True(t, sweep.Segments[0].Enabled)
	assert.Equal(t, 2, sweep.EnabledCount())

	assert.True(t, sweep.TrackFrequency)
	assert.False(t, sweep.TrackSpan)
	assert.True(t, sweep.UseMarkers)
	assert.True(t, sweep.TrackingEnabled)
	assert.Equal(t, 6.0, sweep.BandwidthFactor())
	assert.Equal(t, models.DefaultCenterErrorTolerance, sweep.CenterErrorTolerance)
	assert.Equal(t, models.DefaultSpanErrorTolerance, sweep.SpanErrorTolerance)
}

func TestBuildSweepConfig_ToleranceOverrides(t *testing.T) {
	cfg := tm010Config()
	cfg.CenterErrorTolerance = 0.5
	cfg.SpanErrorTolerance = 0.1

	sweep, err := BuildSweepConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 0.5, sweep.CenterErrorTolerance)
	assert.Equal(t, 0.1, sweep.SpanErrorTolerance)
}

func TestBuildSweepConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.AnalyzerConfig)
		segment string
		field   string
	}{
		{
			name:   "negative center tolerance",
			mutate: func(c *models.AnalyzerConfig) { c.CenterErrorTolerance = -0.1 },
			field:  "center_error_tolerance",
		},
		{
			name:   "negative span tolerance",
			mutate: func(c *models.AnalyzerConfig) { c.SpanErrorTolerance = -1 },
			field:  "span_error_tolerance",
		},
		{
			name:   "infinite bandwidth factor",
			mutate: func(c *models.AnalyzerConfig) { c.BandwidthFactor = math.Inf(1) },
			field:  "bandwidth_factor",
		},
		{
			name: "non-finite power",
			mutate: func(c *models.AnalyzerConfig) {
				spec := c.Segments["TM010"]
				spec.Power = f64(math.NaN())
				c.Segments["TM010"] = spec
			},
			segment: "TM010",
			field:   "power",
		},
		{
			name: "zero ifbw",
			mutate: func(c *models.AnalyzerConfig) {
				spec := c.Segments["TM010"]
				spec.IFBW = f64(0)
				c.Segments["TM010"] = spec
			},
			segment: "TM010",
			field:   "ifbw",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tm010Config()
			tt.mutate(&cfg)

			_, err := BuildSweepConfig(cfg)
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tt.segment, ce.Segment)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestBuildSweepConfig_FirstInvalidByName(t *testing.T) {
	bad := segmentSpec(1e9, 1e6, 51)
	bad.Span = nil

	cfg := models.AnalyzerConfig{
		Segments: map[string]models.SegmentSpec{
			"zeta":  bad,
			"alpha": bad,
		},
		BandwidthFactor: 8,
	}

	for i := 0; i < 10; i++ {
		_, err := BuildSweepConfig(cfg)
		var ce *ConfigurationError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "alpha", ce.Segment)
	}
}
