package relay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
)

// Session states
const (
	StateStarting   = "starting"
	StateActive     = "active"
	StateStopping   = "stopping"
	StateTerminated = "terminated"
)

// Session state machine events
const (
	eventActivate = "activate" // subprocess spawned without error
	eventHalt     = "halt"     // teardown initiated by any trigger
	eventFinalize = "finalize" // resources released, registry entry removed
)

// Session bundles one WebSocket connection, one transcoder subprocess and
// one UDP forwarder under a single camera ID. It is the unit of
// start/stop/cleanup; the registry guarantees at most one non-terminated
// session exists per camera.
type Session struct {
	ID       string
	CameraID string

	transcoderPath string
	grace          time.Duration
	registry       *Registry

	transcoder *Transcoder
	forwarder  *Forwarder
	machine    *fsm.FSM

	started  time.Time
	stopOnce sync.Once
	done     chan struct{}

	// onTerminated runs once after resources are released, on every
	// teardown trigger. The gateway uses it to drop the connection's
	// reference to this session so a later start is not refused.
	onTerminated func()

	// onStopped runs once after resources are released, when teardown was
	// not triggered by connection close. The gateway uses it to send the
	// client-visible stopped message.
	onStopped func()
	onEvent   func(cameraID, eventType, message string)
}

func newSessionFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateStarting,
		fsm.Events{
			{Name: eventActivate, Src: []string{StateStarting}, Dst: StateActive},
			{Name: eventHalt, Src: []string{StateStarting, StateActive}, Dst: StateStopping},
			{Name: eventFinalize, Src: []string{StateStopping}, Dst: StateTerminated},
		}, nil,
	)
}

// NewSession builds a session in the Starting state. Nothing is spawned or
// dialed until start; the caller claims the registry slot first so that
// claim-then-construct is one ordered sequence.
func NewSession(cameraID, transcoderPath string, grace time.Duration, registry *Registry) *Session {
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	return &Session{
		ID:             uuid.NewString(),
		CameraID:       cameraID,
		transcoderPath: transcoderPath,
		grace:          grace,
		registry:       registry,
		machine:        newSessionFSM(),
		done:           make(chan struct{}),
	}
}

// start opens the UDP socket, spawns the transcoder and wires the encoded
// output to the camera. Any failure leaves the session ready for Teardown,
// which releases whatever was acquired.
func (s *Session) start(target string) error {
	fwd, err := NewForwarder(target)
	if err != nil {
		return err
	}
	s.forwarder = fwd

	s.transcoder = &Transcoder{
		Path: s.transcoderPath,
		Args: TranscoderArgs(),
		Tag:  s.CameraID,
	}
	if err := s.transcoder.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrTranscoderSpawn, err)
	}

	s.started = time.Now()
	s.machine.Event(context.Background(), eventActivate)

	go s.pumpEncoded()

	sessionsStarted.Inc()
	log.Printf("[session:%s] started, forwarding to %s", s.CameraID, fwd.RemoteAddr())
	return nil
}

// pumpEncoded is the single reader of the transcoder output; it runs until
// the subprocess closes its stdout.
func (s *Session) pumpEncoded() {
	s.forwarder.Pump(s.transcoder.Output())
}

// watch begins observing subprocess exit. Kept separate from start so the
// caller can finish attaching the session before an early exit can race
// the started notification.
func (s *Session) watch() {
	go s.watchExit()
}

// watchExit observes subprocess termination, expected or not, and folds it
// into the one teardown path. A mid-session crash is not retried; the
// client must start again.
func (s *Session) watchExit() {
	<-s.transcoder.Done()
	if err := s.transcoder.ExitErr(); err != nil && s.State() == StateActive {
		log.Printf("[session:%s] transcoder exited: %v", s.CameraID, err)
		s.emit("transcoder_error", err.Error())
	}
	s.Teardown(true)
}

// WriteFrame forwards one raw PCM frame to the transcoder input. Frames
// against a session past Active are dropped, not an error: late frames
// during teardown are expected.
func (s *Session) WriteFrame(p []byte) error {
	if s.State() != StateActive {
		return ErrSessionClosed
	}
	if _, err := s.transcoder.Write(p); err != nil {
		return err
	}
	pcmBytesIn.Add(float64(len(p)))
	return nil
}

// Teardown releases the session's subprocess, socket and registry slot.
// It is idempotent and safe under every trigger combination (stop message,
// connection close, subprocess exit, spawn failure); the first caller wins
// and decides whether the client is notified.
func (s *Session) Teardown(notify bool) {
	s.stopOnce.Do(func() {
		ctx := context.Background()
		s.machine.Event(ctx, eventHalt)

		if s.transcoder != nil {
			s.transcoder.Stop(s.grace)
		}
		if s.forwarder != nil {
			s.forwarder.Close()
		}
		s.registry.Release(s.CameraID, s)

		s.machine.Event(ctx, eventFinalize)
		close(s.done)

		log.Printf("[session:%s] terminated", s.CameraID)
		s.emit("stopped", "session terminated")
		if s.onTerminated != nil {
			s.onTerminated()
		}
		if notify && s.onStopped != nil {
			s.onStopped()
		}
	})
}

// State reports the current lifecycle state.
func (s *Session) State() string {
	return s.machine.Current()
}

// Done is closed once the session reaches Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Uptime reports how long the session has been live.
func (s *Session) Uptime() time.Duration {
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}

func (s *Session) emit(eventType, message string) {
	if s.onEvent != nil {
		s.onEvent(s.CameraID, eventType, message)
	}
}
