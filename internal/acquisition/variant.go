package acquisition

import (
	"fmt"

	"github.com/RMahshie/resotrack/internal/instrument"
	"github.com/RMahshie/resotrack/pkg/models"
)

// Variant captures everything that differs between supported analyzer
// families: segment table encoding, trigger strategy and trace queries.
// It is resolved once at setup from the identity string.
type Variant interface {
	Name() string
	SupportsMarkers() bool
	// SegmentPayload encodes the enabled segments as the numeric segment table
	SegmentPayload(segments []models.Segment) []float64
	// ProgramSweep replaces the instrument's segment table
	ProgramSweep(link instrument.Link, segments []models.Segment, channel int) error
	// ArmTrigger selects the software trigger source used for single sweeps
	ArmTrigger(link instrument.Link) error
	// Trigger starts one sweep
	Trigger(link instrument.Link) error
	// ForceTrigger switches to the software source and starts one sweep
	ForceTrigger(link instrument.Link) error
	SweepData(link instrument.Link, channel int) ([]float64, error)
	FrequencyData(link instrument.Link, channel int) ([]float64, error)
}

// ResolveVariant maps a model name from *IDN? to its variant
func ResolveVariant(model string) (Variant, error) {
	switch model {
	case "E5071B", "E5071C":
		return enaVariant{model: model}, nil
	case "N5232A":
		return pnaVariant{model: model}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
	}
}

// enaVariant drives E5071-series analyzers. The segment table starts with a
// buffer/format header followed by (f0, span, points, ifbw, power) per segment.
type enaVariant struct {
	model string
}

func (v enaVariant) Name() string { return v.model }

func (v enaVariant) SupportsMarkers() bool { return true }

func (v enaVariant) SegmentPayload(segments []models.Segment) []float64 {
	// <buf>,<stim>,<ifbw>,<pow>,<del>,<time>,<segm>
	payload := []float64{5, 1, 1, 1, 0, 0, 0}
	count := 0
	for _, s := range segments {
		if !s.Enabled {
			continue
		}
		count++
		payload = append(payload, s.F0, s.Span, float64(s.Points), s.IFBW, s.Power)
	}
	payload[6] = float64(count)
	return payload
}

func (v enaVariant) ProgramSweep(link instrument.Link, segments []models.Segment, channel int) error {
	return link.WriteValues(":SENS%d:SEGM:DATA", v.SegmentPayload(segments), channel)
}

func (v enaVariant) ArmTrigger(link instrument.Link) error {
	return link.Write(":TRIG:SOUR BUS")
}

func (v enaVariant) Trigger(link instrument.Link) error {
	return link.Write(":TRIG:SING")
}

func (v enaVariant) ForceTrigger(link instrument.Link) error {
	if err := v.ArmTrigger(link); err != nil {
		return err
	}
	return v.Trigger(link)
}

func (v enaVariant) SweepData(link instrument.Link, channel int) ([]float64, error) {
	return link.QueryValues(":CALC%d:DATA:SDAT?", channel)
}

func (v enaVariant) FrequencyData(link instrument.Link, channel int) ([]float64, error) {
	return link.QueryValues(":SENS%d:FREQ:DATA?", channel)
}

// pnaVariant drives N5232A analyzers. Segments carry their own power and
// IF bandwidth, enabled through the per-segment control flags, and are
// encoded as (state, points, f0, span, ifbw, time, power).
type pnaVariant struct {
	model string
}

func (v pnaVariant) Name() string { return v.model }

// Marker readback is not wired up for this family
func (v pnaVariant) SupportsMarkers() bool { return false }

func (v pnaVariant) SegmentPayload(segments []models.Segment) []float64 {
	payload := []float64{0}
	count := 0
	for _, s := range segments {
		if !s.Enabled {
			continue
		}
		count++
		payload = append(payload, 1, float64(s.Points), s.F0, s.Span, s.IFBW, 0, s.Power)
	}
	payload[0] = float64(count)
	return payload
}

func (v pnaVariant) ProgramSweep(link instrument.Link, segments []models.Segment, channel int) error {
	if err := link.Write(":SENS%d:SEGM:BWID:CONT %s", channel, instrument.OnOff(true)); err != nil {
		return err
	}
	if err := link.Write(":SENS%d:SEGM:POW:CONT %s", channel, instrument.OnOff(true)); err != nil {
		return err
	}
	return link.WriteValues(":SENS%d:SEGM:LIST SSTOP,", v.SegmentPayload(segments), channel)
}

func (v pnaVariant) ArmTrigger(link instrument.Link) error {
	return link.Write(":TRIG:SOUR MAN")
}

func (v pnaVariant) Trigger(link instrument.Link) error {
	return link.Write(":INIT:IMM")
}

func (v pnaVariant) ForceTrigger(link instrument.Link) error {
	if err := v.ArmTrigger(link); err != nil {
		return err
	}
	return v.Trigger(link)
}

func (v pnaVariant) SweepData(link instrument.Link, channel int) ([]float64, error) {
	return link.QueryValues(":CALC%d:DATA? SDAT", channel)
}

func (v pnaVariant) FrequencyData(link instrument.Link, channel int) ([]float64, error) {
	return link.QueryValues(":CALC%d:X?", channel)
}
