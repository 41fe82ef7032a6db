package relay

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwarderSend(t *testing.T) {
	sink, addr := udpSink(t)

	f, err := NewForwarder(addr)
	require.NoError(t, err)
	defer f.Close()

	payload := []byte{0xFF, 0xF1, 0x50, 0x40} // ADTS-ish header bytes
	require.NoError(t, f.Send(payload))

	sink.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1500)
	n, _, err := sink.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf[:n])
}

func TestForwarderPump(t *testing.T) {
	sink, addr := udpSink(t)

	f, err := NewForwarder(addr)
	require.NoError(t, err)
	defer f.Close()

	chunk := bytes.Repeat([]byte{0xAB}, 512)
	done := make(chan struct{})
	go func() {
		f.Pump(bytes.NewReader(chunk))
		close(done)
	}()

	sink.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 4096)
	n, _, err := sink.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, chunk, buf[:n])

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not return after reader exhaustion")
	}
}

func TestForwarderBadAddress(t *testing.T) {
	_, err := NewForwarder("not-a-host-port")
	assert.Error(t, err)
}
