package acquisition

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured    = errors.New("session not configured")
	ErrClosed           = errors.New("session closed")
	ErrUnsupportedModel = errors.New("unsupported analyzer model")
	ErrSegmentIndex     = errors.New("segment index out of range")
	ErrTraceMismatch    = errors.New("sweep trace does not match programmed segments")
)

// ConfigurationError reports a missing or invalid setup field. It is raised
// before any instrument I/O takes place.
type ConfigurationError struct {
	Segment string
	Field   string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Segment == "" {
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("configuration: segment %q: %s: %s", e.Segment, e.Field, e.Reason)
}
