package relay

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeStub creates an executable shell script used in place of the real
// transcoder binary, so process-lifecycle behavior is testable without
// ffmpeg installed.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcoder-stub")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// passthroughStub behaves like a zero-latency transcoder: everything
// written to stdin appears on stdout, and it exits when stdin closes.
func passthroughStub(t *testing.T) string {
	t.Helper()
	return writeStub(t, "exec cat")
}

// udpSink opens a local UDP listener standing in for a camera speaker.
func udpSink(t *testing.T) (net.PacketConn, string) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	return pc, pc.LocalAddr().String()
}

// sinkPort extracts the bound port of a udpSink listener.
func sinkPort(pc net.PacketConn) int {
	return pc.LocalAddr().(*net.UDPAddr).Port
}
