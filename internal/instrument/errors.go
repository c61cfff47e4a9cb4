package instrument

import (
	"errors"
	"fmt"
)

// TransportError reports an I/O failure on the link
type TransportError struct {
	Op      string
	Command string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("instrument %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("instrument %s %q: %v", e.Op, e.Command, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is, or wraps, a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
