package relay

import (
	"fmt"
	"io"
	"log"
	"net"
)

// Forwarder owns one outbound datagram socket targeting a camera's
// speaker port. Delivery is fire-and-forget: the speaker ingest is a
// low-latency sink, and a dropped frame of live speech is imperceptible,
// so no retransmission or ordering is attempted.
type Forwarder struct {
	conn *net.UDPConn
}

// NewForwarder dials the camera's speaker address. UDP is connectionless,
// so this performs no camera-side handshake.
func NewForwarder(target string) (*Forwarder, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("resolve camera address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial camera: %w", err)
	}
	return &Forwarder{conn: conn}, nil
}

// Pump copies encoded chunks from r to the camera, one datagram per read.
// Zero-byte or oddly framed chunks are passed through untouched. Returns
// when r is exhausted (normally: transcoder exit closed its stdout).
func (f *Forwarder) Pump(r io.Reader) {
	buf := make([]byte, ForwardChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := f.conn.Write(buf[:n]); werr == nil {
				datagramsSent.Inc()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("[forwarder] output read: %v", err)
			}
			return
		}
	}
}

// Send forwards a single encoded chunk.
func (f *Forwarder) Send(p []byte) error {
	_, err := f.conn.Write(p)
	if err == nil {
		datagramsSent.Inc()
	}
	return err
}

// RemoteAddr reports the camera address this forwarder targets.
func (f *Forwarder) RemoteAddr() string {
	return f.conn.RemoteAddr().String()
}

func (f *Forwarder) Close() error {
	return f.conn.Close()
}
