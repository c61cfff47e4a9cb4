// Package instrument defines the command/response capability the
// acquisition core drives, and a SCPI raw-socket implementation of it.
package instrument

import (
	"fmt"
	"strconv"
	"strings"
)

// Link is a single command/response channel to an instrument. Only one
// transaction may be in flight at a time; implementations are not expected
// to be shared between concurrent callers.
//
// Command templates are fmt format strings.
type Link interface {
	Write(format string, args ...any) error
	// WriteValues writes the rendered command followed by a comma separated
	// list of values
	WriteValues(format string, values []float64, args ...any) error
	Query(format string, args ...any) (string, error)
	QueryValues(format string, args ...any) ([]float64, error)
	Reset() error
	Close() error
}

// OnOff renders a boolean as a SCPI switch argument
func OnOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}

// FormatValues renders a numeric payload the way instruments expect it:
// shortest representation, comma separated
func FormatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

// RenderValues builds the full text of a WriteValues command. A template
// ending in a comma continues an argument list, otherwise a space separates
// header and payload.
func RenderValues(format string, values []float64, args ...any) string {
	cmd := fmt.Sprintf(format, args...)
	sep := " "
	if strings.HasSuffix(cmd, ",") {
		sep = ""
	}
	return cmd + sep + FormatValues(values)
}

// ParseValues parses a comma separated numeric response
func ParseValues(resp string) ([]float64, error) {
	resp = strings.TrimSpace(resp)
	if resp == "" {
		return nil, nil
	}
	fields := strings.Split(resp, ",")
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// ParseModel extracts the model field from an *IDN? response
func ParseModel(idn string) (string, error) {
	fields := strings.Split(idn, ",")
	if len(fields) < 2 {
		return "", fmt.Errorf("malformed identity %q", strings.TrimSpace(idn))
	}
	return strings.TrimSpace(fields[1]), nil
}
