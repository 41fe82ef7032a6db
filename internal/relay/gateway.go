package relay

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"talkback-relay/internal/config"
)

// Gateway accepts talkback WebSocket connections, demultiplexes JSON
// control frames from binary audio frames, and drives session lifecycle.
// Cleanup runs exactly once per connection regardless of how it ends.
type Gateway struct {
	cameras        map[string]config.CameraAddress
	registry       *Registry
	transcoderPath string
	grace          time.Duration

	upgrader websocket.Upgrader

	onEvent func(cameraID, eventType, message string)
	eventMu sync.RWMutex
}

func NewGateway(cfg *config.Config, registry *Registry) *Gateway {
	return &Gateway{
		cameras:        cfg.Cameras,
		registry:       registry,
		transcoderPath: cfg.Transcoder.Path,
		grace:          time.Duration(cfg.Transcoder.GraceTimeoutMs) * time.Millisecond,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // operators connect from the property-ops frontend origin
			},
		},
	}
}

// SetEventCallback wires session lifecycle events to an external sink,
// typically the event store.
func (g *Gateway) SetEventCallback(cb func(cameraID, eventType, message string)) {
	g.eventMu.Lock()
	g.onEvent = cb
	g.eventMu.Unlock()
}

// HandleWS upgrades the request and serves the connection until it closes.
func (g *Gateway) HandleWS(c *gin.Context) {
	conn, err := g.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}

	cl := &client{
		id:      uuid.NewString(),
		conn:    conn,
		gateway: g,
		closed:  make(chan struct{}),
	}
	log.Printf("[client:%s] connected from %s", cl.id, conn.RemoteAddr())
	cl.run()
}

// StopAll tears down every active session; used on process shutdown.
func (g *Gateway) StopAll() {
	for _, s := range g.registry.Active() {
		s.Teardown(false)
	}
}

// startSession performs the ordered construction steps: resolve the camera,
// claim the registry slot (one atomic check-and-insert), open the socket
// and spawn the transcoder. Any failure releases the claim and leaves the
// registry as if the start never happened.
func (g *Gateway) startSession(cameraID string, cl *client) (*Session, error) {
	addr, ok := g.cameras[cameraID]
	if !ok {
		sessionsRejected.WithLabelValues("unknown_camera").Inc()
		g.emit(cameraID, "rejected", "unknown camera")
		return nil, ErrUnknownCamera
	}

	s := NewSession(cameraID, g.transcoderPath, g.grace, g.registry)
	s.onEvent = g.emit
	if err := g.registry.Claim(cameraID, s); err != nil {
		sessionsRejected.WithLabelValues("camera_busy").Inc()
		g.emit(cameraID, "rejected", "camera busy")
		return nil, err
	}

	s.onTerminated = func() { cl.detach(s) }
	s.onStopped = func() { cl.send(ServerMessage{Type: MsgStopped}) }

	if err := s.start(addr.UDPAddr()); err != nil {
		log.Printf("[client:%s] session start for %s: %v", cl.id, cameraID, err)
		sessionsRejected.WithLabelValues("spawn_failure").Inc()
		g.emit(cameraID, "transcoder_error", err.Error())
		s.Teardown(false)
		return nil, err
	}

	g.emit(cameraID, "started", "session started")
	return s, nil
}

func (g *Gateway) emit(cameraID, eventType, message string) {
	g.eventMu.RLock()
	cb := g.onEvent
	g.eventMu.RUnlock()
	if cb != nil {
		cb(cameraID, eventType, message)
	}
}

// client is one connected browser operator.
type client struct {
	id      string
	conn    *websocket.Conn
	gateway *Gateway

	writeMu sync.Mutex // serializes control writes between read loop and ping ticker

	mu      sync.Mutex // guards session
	session *Session

	closed chan struct{}
}

// run reads frames until the connection ends, then guarantees cleanup.
func (cl *client) run() {
	defer cl.cleanup()

	cl.conn.SetReadLimit(ReadLimit)
	go cl.pingLoop()

	for {
		msgType, data, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[client:%s] read: %v", cl.id, err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			cl.handleControl(data)
		case websocket.BinaryMessage:
			cl.handleAudio(data)
		}
	}
}

// cleanup runs once when the connection ends. Teardown here never attempts
// a stopped message: the peer is gone.
func (cl *client) cleanup() {
	close(cl.closed)

	cl.mu.Lock()
	s := cl.session
	cl.session = nil
	cl.mu.Unlock()

	if s != nil {
		s.Teardown(false)
	}
	cl.conn.Close()
	log.Printf("[client:%s] disconnected", cl.id)
}

func (cl *client) handleControl(data []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Malformed control frames are logged and ignored; they never
		// terminate the connection.
		log.Printf("[client:%s] invalid control message: %v", cl.id, err)
		return
	}

	switch msg.Type {
	case MsgStart:
		cl.handleStart(msg.CameraID)
	case MsgStop:
		cl.handleStop()
	case MsgPong:
		// keepalive ack, nothing to do
	default:
		log.Printf("[client:%s] unknown control type %q", cl.id, msg.Type)
	}
}

func (cl *client) handleStart(cameraID string) {
	cl.mu.Lock()
	busy := cl.session != nil
	cl.mu.Unlock()
	if busy {
		cl.send(ServerMessage{Type: MsgError, Message: "Session already active"})
		return
	}

	s, err := cl.gateway.startSession(cameraID, cl)
	if err != nil {
		cl.send(ServerMessage{Type: MsgError, Message: userMessage(err)})
		return
	}

	cl.mu.Lock()
	cl.session = s
	cl.mu.Unlock()

	cl.send(ServerMessage{Type: MsgStarted, CameraID: cameraID})
	s.watch()
}

func (cl *client) handleStop() {
	cl.mu.Lock()
	s := cl.session
	cl.session = nil
	cl.mu.Unlock()

	if s == nil {
		// stop without a session: the client likely raced a subprocess
		// exit; not an error
		return
	}
	s.Teardown(true)
}

// handleAudio forwards a binary PCM frame to the active session. Frames
// with no session (late arrivals during teardown) are silently dropped.
func (cl *client) handleAudio(frame []byte) {
	cl.mu.Lock()
	s := cl.session
	cl.mu.Unlock()
	if s == nil {
		return
	}

	if err := s.WriteFrame(frame); err != nil && !errors.Is(err, ErrSessionClosed) {
		// transcoder input went away under us; the exit watcher owns teardown
		log.Printf("[client:%s] frame write: %v", cl.id, err)
		cl.detach(s)
	}
}

// detach clears the session reference if cl still holds this session.
func (cl *client) detach(s *Session) {
	cl.mu.Lock()
	if cl.session == s {
		cl.session = nil
	}
	cl.mu.Unlock()
}

// pingLoop sends an advisory keepalive for the life of the connection. No
// response is required: delivery is best-effort, like the audio itself.
func (cl *client) pingLoop() {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cl.closed:
			return
		case <-ticker.C:
			if err := cl.send(ServerMessage{Type: MsgPing}); err != nil {
				return
			}
		}
	}
}

func (cl *client) send(msg ServerMessage) error {
	cl.writeMu.Lock()
	defer cl.writeMu.Unlock()
	cl.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	return cl.conn.WriteJSON(msg)
}
