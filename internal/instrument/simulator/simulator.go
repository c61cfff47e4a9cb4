// Package simulator provides an in-process swept-frequency analyzer that
// answers the SCPI subset used by the acquisition session. Each resonance
// is an ideal Lorentzian that can drift by a fixed step per triggered sweep.
package simulator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/RMahshie/resotrack/internal/fitting"
	"github.com/RMahshie/resotrack/internal/instrument"
)

// ErrFault is returned, wrapped in a TransportError, by injected faults
var ErrFault = errors.New("simulated bus fault")

// Resonance describes one simulated resonance
type Resonance struct {
	Center    float64 // Hz
	Bandwidth float64 // Hz
	Peak      float64 // linear amplitude at the center
	Drift     float64 // Hz per triggered sweep
}

// Segment is one entry of the programmed segment table
type Segment struct {
	F0     float64
	Span   float64
	Points int
	IFBW   float64
	Power  float64
}

// Analyzer is a simulated analyzer implementing instrument.Link
type Analyzer struct {
	mu          sync.Mutex
	model       string
	resonances  []Resonance
	segments    []Segment
	sweeps      int
	source      string
	commands    []string
	faults      int
	writeFaults int
	closed      bool
}

var markerQuery = regexp.MustCompile(`^:CALC\d+:MARK(\d+):BWID:DATA\?$`)

// New creates a simulator reporting model in its identity string
func New(model string, resonances ...Resonance) *Analyzer {
	return &Analyzer{
		model:      model,
		resonances: append([]Resonance(nil), resonances...),
		source:     "INT",
	}
}

// InjectFaults makes the next n queries fail with a transport error
func (a *Analyzer) InjectFaults(n int) {
	a.mu.Lock()
	a.faults = n
	a.mu.Unlock()
}

// InjectWriteFaults makes the next n writes fail with a transport error.
// A failed write has no effect on the simulated state.
func (a *Analyzer) InjectWriteFaults(n int) {
	a.mu.Lock()
	a.writeFaults = n
	a.mu.Unlock()
}

// SetResonances replaces the simulated resonances
func (a *Analyzer) SetResonances(resonances ...Resonance) {
	a.mu.Lock()
	a.resonances = append([]Resonance(nil), resonances...)
	a.mu.Unlock()
}

// Segments returns the programmed segment table
func (a *Analyzer) Segments() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Segment(nil), a.segments...)
}

// Sweeps returns how many sweeps have been triggered
func (a *Analyzer) Sweeps() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweeps
}

// TriggerSource returns the selected trigger source
func (a *Analyzer) TriggerSource() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.source
}

// Commands returns every command received so far
func (a *Analyzer) Commands() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.commands...)
}

// CountPrefix counts received commands starting with prefix
func (a *Analyzer) CountPrefix(prefix string) int {
	n := 0
	for _, c := range a.Commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called
func (a *Analyzer) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Analyzer) Write(format string, args ...any) error {
	cmd := fmt.Sprintf(format, args...)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)

	if err := a.writeFault(cmd); err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(cmd, ":TRIG:SOUR "):
		a.source = strings.TrimPrefix(cmd, ":TRIG:SOUR ")
	case cmd == ":TRIG:SING" || cmd == ":INIT:IMM":
		a.sweeps++
	}
	return nil
}

func (a *Analyzer) WriteValues(format string, values []float64, args ...any) error {
	cmd := instrument.RenderValues(format, values, args...)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)

	header := fmt.Sprintf(format, args...)
	if err := a.writeFault(header); err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(header, ":SEGM:DATA"):
		segs, err := decodeENA(values)
		if err != nil {
			return &instrument.TransportError{Op: "write", Command: header, Err: err}
		}
		a.segments = segs
	case strings.Contains(header, ":SEGM:LIST"):
		segs, err := decodePNA(values)
		if err != nil {
			return &instrument.TransportError{Op: "write", Command: header, Err: err}
		}
		a.segments = segs
	}
	return nil
}

func (a *Analyzer) Query(format string, args ...any) (string, error) {
	cmd := fmt.Sprintf(format, args...)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)

	if err := a.fault(cmd); err != nil {
		return "", err
	}
	switch cmd {
	case "*IDN?":
		return fmt.Sprintf("Simulated,%s,SIM00001,1.0", a.model), nil
	case "*OPC?":
		return "1", nil
	}
	values, err := a.values(cmd)
	if err != nil {
		return "", err
	}
	return instrument.FormatValues(values), nil
}

func (a *Analyzer) QueryValues(format string, args ...any) ([]float64, error) {
	cmd := fmt.Sprintf(format, args...)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, cmd)

	if err := a.fault(cmd); err != nil {
		return nil, err
	}
	return a.values(cmd)
}

func (a *Analyzer) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.commands = append(a.commands, "*RST")
	a.segments = nil
	a.source = "INT"
	return nil
}

func (a *Analyzer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *Analyzer) fault(cmd string) error {
	if a.closed {
		return &instrument.TransportError{Op: "query", Command: cmd, Err: errors.New("link closed")}
	}
	if a.faults > 0 {
		a.faults--
		return &instrument.TransportError{Op: "query", Command: cmd, Err: ErrFault}
	}
	return nil
}

func (a *Analyzer) writeFault(cmd string) error {
	if a.closed {
		return &instrument.TransportError{Op: "write", Command: cmd, Err: errors.New("link closed")}
	}
	if a.writeFaults > 0 {
		a.writeFaults--
		return &instrument.TransportError{Op: "write", Command: cmd, Err: ErrFault}
	}
	return nil
}

func (a *Analyzer) values(cmd string) ([]float64, error) {
	switch {
	case strings.HasSuffix(cmd, ":DATA:SDAT?") || strings.HasSuffix(cmd, ":DATA? SDAT"):
		return a.sweepData(), nil
	case strings.HasSuffix(cmd, ":FREQ:DATA?") || strings.HasSuffix(cmd, ":X?"):
		return a.frequencies(), nil
	}
	if m := markerQuery.FindStringSubmatch(cmd); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n < 1 || n > len(a.segments) {
			return nil, &instrument.TransportError{Op: "query", Command: cmd, Err: fmt.Errorf("marker %d not defined", n)}
		}
		return a.marker(a.segments[n-1]), nil
	}
	return nil, &instrument.TransportError{Op: "query", Command: cmd, Err: errors.New("undefined header")}
}

func (a *Analyzer) frequencies() []float64 {
	var freq []float64
	for _, s := range a.segments {
		start := s.F0 - s.Span/2
		for i := 0; i < s.Points; i++ {
			f := s.F0
			if s.Points > 1 {
				f = start + s.Span*float64(i)/float64(s.Points-1)
			}
			freq = append(freq, f)
		}
	}
	return freq
}

// sweepData returns interleaved real/imaginary pairs for every point
func (a *Analyzer) sweepData() []float64 {
	freq := a.frequencies()
	data := make([]float64, 0, 2*len(freq))
	for _, f := range freq {
		var re, im float64
		for _, r := range a.resonances {
			center := a.center(r)
			amp := fitting.Lorentzian(f, center, r.Bandwidth, r.Peak)
			phase := -math.Atan(2 * (f - center) / r.Bandwidth)
			re += amp * math.Cos(phase)
			im += amp * math.Sin(phase)
		}
		data = append(data, re, im)
	}
	return data
}

// marker returns (bw, f0, q, il) of the resonance nearest the segment's
// center, the peak a multi-peak search would find in that segment
func (a *Analyzer) marker(seg Segment) []float64 {
	if len(a.resonances) == 0 {
		return []float64{0, 0, 0, 0}
	}
	r := a.resonances[0]
	for _, c := range a.resonances[1:] {
		if math.Abs(a.center(c)-seg.F0) < math.Abs(a.center(r)-seg.F0) {
			r = c
		}
	}
	center := a.center(r)
	return []float64{r.Bandwidth, center, center / r.Bandwidth, 20 * math.Log10(r.Peak)}
}

func (a *Analyzer) center(r Resonance) float64 {
	return r.Center + r.Drift*float64(a.sweeps)
}

func decodeENA(values []float64) ([]Segment, error) {
	const header, stride = 7, 5
	if len(values) < header {
		return nil, fmt.Errorf("segment table too short: %d values", len(values))
	}
	count := int(values[6])
	if len(values) != header+count*stride {
		return nil, fmt.Errorf("segment table declares %d segments but carries %d values", count, len(values)-header)
	}
	segs := make([]Segment, count)
	for i := range segs {
		v := values[header+i*stride:]
		segs[i] = Segment{F0: v[0], Span: v[1], Points: int(v[2]), IFBW: v[3], Power: v[4]}
	}
	return segs, nil
}

func decodePNA(values []float64) ([]Segment, error) {
	const header, stride = 1, 7
	if len(values) < header {
		return nil, errors.New("segment list is empty")
	}
	count := int(values[0])
	if len(values) != header+count*stride {
		return nil, fmt.Errorf("segment list declares %d segments but carries %d values", count, len(values)-header)
	}
	segs := make([]Segment, count)
	for i := range segs {
		v := values[header+i*stride:]
		segs[i] = Segment{Points: int(v[1]), F0: v[2], Span: v[3], IFBW: v[4], Power: v[6]}
	}
	return segs, nil
}
