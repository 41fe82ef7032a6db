package relay

import "errors"

// Control message types, client → server
const (
	MsgStart = "start"
	MsgStop  = "stop"
	MsgPong  = "pong"
)

// Message types, server → client
const (
	MsgStarted = "started"
	MsgError   = "error"
	MsgStopped = "stopped"
	MsgPing    = "ping"
)

// ControlMessage is a JSON frame received on the control channel
type ControlMessage struct {
	Type     string `json:"type"`
	CameraID string `json:"cameraId,omitempty"`
}

// ServerMessage is a JSON frame sent to the client
type ServerMessage struct {
	Type     string `json:"type"`
	CameraID string `json:"cameraId,omitempty"`
	Message  string `json:"message,omitempty"`
}

var (
	// ErrUnknownCamera is returned by start for an ID absent from the camera table
	ErrUnknownCamera = errors.New("unknown camera")

	// ErrCameraBusy is returned when another session already owns the camera
	ErrCameraBusy = errors.New("camera in use")

	// ErrTranscoderSpawn is returned when the transcoder subprocess could not launch
	ErrTranscoderSpawn = errors.New("transcoder spawn failed")

	// ErrSessionClosed is returned for writes against a session past teardown
	ErrSessionClosed = errors.New("session closed")
)

// userMessage maps internal errors to the texts shown to browser operators.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnknownCamera):
		return "Invalid camera ID"
	case errors.Is(err, ErrCameraBusy):
		return "Camera in use by another user"
	case errors.Is(err, ErrTranscoderSpawn):
		return "Audio pipeline failed to start"
	default:
		return "Internal error"
	}
}
