package instrument

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSCPIPort is the raw socket port used by LAN instruments
const DefaultSCPIPort = "5025"

// SocketLink talks SCPI over a raw TCP socket, one newline terminated
// message per command
type SocketLink struct {
	mu      sync.Mutex
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	address string
}

// Dial opens a SocketLink. The address may omit the port.
func Dial(ctx context.Context, address string, timeout time.Duration) (*SocketLink, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, DefaultSCPIPort)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, &TransportError{Op: "dial", Command: address, Err: err}
	}

	log.Info().Str("address", address).Dur("timeout", timeout).Msg("Connected to instrument")
	return NewSocketLink(conn, address, timeout), nil
}

// NewSocketLink wraps an established connection
func NewSocketLink(conn net.Conn, address string, timeout time.Duration) *SocketLink {
	return &SocketLink{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: timeout,
		address: address,
	}
}

// Write sends a command that produces no response
func (l *SocketLink) Write(format string, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.send("write", fmt.Sprintf(format, args...))
}

// WriteValues sends a command carrying a numeric payload
func (l *SocketLink) WriteValues(format string, values []float64, args ...any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.send("write", RenderValues(format, values, args...))
}

// Query sends a command and returns its response line without the terminator
func (l *SocketLink) Query(format string, args ...any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cmd := fmt.Sprintf(format, args...)
	if err := l.send("query", cmd); err != nil {
		return "", err
	}
	if l.timeout > 0 {
		if err := l.conn.SetReadDeadline(time.Now().Add(l.timeout)); err != nil {
			return "", &TransportError{Op: "query", Command: cmd, Err: err}
		}
	}
	line, err := l.reader.ReadString('\n')
	if err != nil {
		return "", &TransportError{Op: "query", Command: cmd, Err: err}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// QueryValues sends a command and parses a comma separated numeric response
func (l *SocketLink) QueryValues(format string, args ...any) ([]float64, error) {
	resp, err := l.Query(format, args...)
	if err != nil {
		return nil, err
	}
	values, err := ParseValues(resp)
	if err != nil {
		return nil, &TransportError{Op: "parse", Command: fmt.Sprintf(format, args...), Err: err}
	}
	return values, nil
}

// Reset restores the instrument's preset state and clears its status
func (l *SocketLink) Reset() error {
	if err := l.Write("*RST"); err != nil {
		return err
	}
	return l.Write("*CLS")
}

// Close releases the socket
func (l *SocketLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.conn.Close(); err != nil {
		return &TransportError{Op: "close", Command: l.address, Err: err}
	}
	return nil
}

func (l *SocketLink) send(op, cmd string) error {
	if l.timeout > 0 {
		if err := l.conn.SetWriteDeadline(time.Now().Add(l.timeout)); err != nil {
			return &TransportError{Op: op, Command: cmd, Err: err}
		}
	}
	if _, err := l.conn.Write([]byte(cmd + "\n")); err != nil {
		return &TransportError{Op: op, Command: cmd, Err: err}
	}
	return nil
}
