package instrument

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeLink returns a link on one end of an in-memory pipe and a reader/writer
// for the other end
func pipeLink(t *testing.T) (*SocketLink, *bufio.Reader, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return NewSocketLink(client, "pipe", time.Second), bufio.NewReader(server), server
}

func TestSocketLink_Write(t *testing.T) {
	link, peer, _ := pipeLink(t)

	done := make(chan string, 1)
	go func() {
		line, _ := peer.ReadString('\n')
		done <- line
	}()

	require.NoError(t, link.Write(":SENS%d:SWE:TYPE %s", 1, "SEGM"))
	assert.Equal(t, ":SENS1:SWE:TYPE SEGM\n", <-done)
}

func TestSocketLink_WriteValues(t *testing.T) {
	tests := []struct {
		name   string
		format string
		values []float64
		want   string
	}{
		{
			name:   "space separated header",
			format: ":SENS%d:SEGM:DATA",
			values: []float64{5, 1, 2.5007e9, 1e6},
			want:   ":SENS1:SEGM:DATA 5,1,2500700000,1000000\n",
		},
		{
			name:   "header continues argument list",
			format: ":SENS%d:SEGM:LIST SSTOP,",
			values: []float64{1, 201},
			want:   ":SENS1:SEGM:LIST SSTOP,1,201\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, peer, _ := pipeLink(t)
			done := make(chan string, 1)
			go func() {
				line, _ := peer.ReadString('\n')
				done <- line
			}()

			require.NoError(t, link.WriteValues(tt.format, tt.values, 1))
			assert.Equal(t, tt.want, <-done)
		})
	}
}

func TestSocketLink_QueryValues(t *testing.T) {
	link, peer, server := pipeLink(t)

	go func() {
		line, _ := peer.ReadString('\n')
		if line == ":CALC1:MARK1:BWID:DATA?\n" {
			server.Write([]byte("+1.0E+05,+2.5007E+09,+2.5007E+04,-3.5\n"))
		}
	}()

	values, err := link.QueryValues(":CALC%d:MARK%d:BWID:DATA?", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{1e5, 2.5007e9, 2.5007e4, -3.5}, values)
}

func TestSocketLink_QueryTimeoutIsTransportError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	link := NewSocketLink(client, "pipe", 50*time.Millisecond)
	defer link.Close()

	go func() {
		// Swallow the command and never answer
		bufio.NewReader(server).ReadString('\n')
	}()

	_, err := link.Query("*OPC?")
	require.Error(t, err)
	assert.True(t, IsTransport(err))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "*OPC?", te.Command)
}

func TestParseValues(t *testing.T) {
	values, err := ParseValues(" 1, 2.5,-3e3 \n")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, -3000}, values)

	values, err = ParseValues("")
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = ParseValues("1,abc")
	assert.Error(t, err)
}

func TestParseModel(t *testing.T) {
	model, err := ParseModel("Agilent Technologies,E5071C,MY46100000,A.09.10\n")
	require.NoError(t, err)
	assert.Equal(t, "E5071C", model)

	_, err = ParseModel("garbage")
	assert.Error(t, err)
}
