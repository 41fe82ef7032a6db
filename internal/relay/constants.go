package relay

import "time"

// Gateway and session timing constants
const (
	// PingInterval is how often a keepalive ping is sent to each client.
	// The ping is advisory: no pong is required to keep the connection up.
	PingInterval = 30 * time.Second

	// WriteTimeout is the deadline for outgoing WebSocket control messages
	WriteTimeout = 10 * time.Second

	// ReadLimit is the maximum inbound WebSocket message size. Audio frames
	// from the browser capture pipeline are a few KB; anything larger is abuse.
	ReadLimit = 64 * 1024

	// DefaultStopGrace is how long a stopping session waits for the
	// transcoder to flush and exit after its input closes, before killing it
	DefaultStopGrace = 3 * time.Second

	// ForwardChunkSize is the read size for the encoded-output pump. Each
	// read becomes one datagram; the camera decoder re-syncs on ADTS sync
	// words, so chunks need not align with frame boundaries.
	ForwardChunkSize = 4096
)

// Audio format constants for the browser→camera leg
const (
	// InputSampleRate is the PCM rate produced by the browser capture
	InputSampleRate = 48000

	// OutputSampleRate is the AAC rate the camera firmware expects
	OutputSampleRate = 22050

	// OutputBitrate keeps encoded speech around 32 kbps
	OutputBitrate = "32k"
)
