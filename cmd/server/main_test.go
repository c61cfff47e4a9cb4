package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/resotrack/internal/acquisition"
	"github.com/RMahshie/resotrack/internal/config"
	"github.com/RMahshie/resotrack/internal/instrument/simulator"
	"github.com/RMahshie/resotrack/pkg/models"
)

func TestStartSession_ReleasesLinkOnFailure(t *testing.T) {
	tests := []struct {
		name string
		sim  *simulator.Analyzer
		cfg  models.AnalyzerConfig
	}{
		{
			name: "unsupported model",
			sim:  simulator.New("ZVA24"),
			cfg:  analyzerConfig(),
		},
		{
			name: "missing segment field",
			sim:  simulator.New("E5071C"),
			cfg: models.AnalyzerConfig{
				Segments:        map[string]models.SegmentSpec{"TM010": {}},
				BandwidthFactor: 8,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := startSession(tt.sim, 0, tt.cfg)
			require.Error(t, err)
			assert.Nil(t, session)
			assert.True(t, tt.sim.Closed())
		})
	}
}

func TestStartSession_KeepsLinkOpen(t *testing.T) {
	sim := simulator.New("E5071C")
	session, err := startSession(sim, 0, analyzerConfig())
	require.NoError(t, err)
	assert.Equal(t, acquisition.StateConfigured, session.State())
	assert.False(t, sim.Closed())

	require.NoError(t, session.Cleanup())
	assert.True(t, sim.Closed())
}

func TestOpenLink_SimulatorCenteredOnFirstSegment(t *testing.T) {
	f0, span := 2.5007e9, 1e6
	file := &config.AnalyzerFile{Segments: []config.SegmentEntry{
		{Name: "TM010", SegmentSpec: models.SegmentSpec{F0: &f0, Span: &span}},
	}}

	link, err := openLink(t.Context(), config.InstrumentConfig{Simulate: true}, file)
	require.NoError(t, err)
	sim, ok := link.(*simulator.Analyzer)
	require.True(t, ok)

	idn, err := sim.Query("*IDN?")
	require.NoError(t, err)
	assert.Contains(t, idn, "E5071C")

	require.NoError(t, sim.WriteValues(":SENS%d:SEGM:DATA", []float64{5, 1, 1, 1, 0, 0, 1, f0, span, 11, 1000, 0}, 1))
	marker, err := sim.QueryValues(":CALC1:MARK1:BWID:DATA?")
	require.NoError(t, err)
	assert.Equal(t, f0, marker[1])
	assert.Equal(t, span/models.DefaultBandwidthFactor, marker[0])
}

func analyzerConfig() models.AnalyzerConfig {
	f0, span, ifbw, power := 2.5007e9, 1e6, 1000.0, 0.0
	points := 201
	return models.AnalyzerConfig{
		Segments: map[string]models.SegmentSpec{
			"TM010": {F0: &f0, Span: &span, Points: &points, IFBW: &ifbw, Power: &power},
		},
		BandwidthFactor: 8,
	}
}
