package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"talkback-relay/internal/relay"
)

// frameBytes is 20ms of s16le mono 48 kHz PCM, the pacing the browser
// capture pipeline uses.
const frameBytes = relay.InputSampleRate / 50 * 2

func speakCommand() *cobra.Command {
	var cameraID string

	cmd := &cobra.Command{
		Use:   "speak <pcm-file>",
		Short: "Stream a raw PCM file through a camera's speaker",
		Long:  `Streams a headerless s16le mono 48 kHz PCM file through the relay to the camera speaker, paced in real time.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return speak(serverURL, cameraID, args[0])
		},
	}

	cmd.Flags().StringVarP(&cameraID, "camera", "c", "", "Target camera ID")
	cmd.MarkFlagRequired("camera")

	return cmd
}

func speak(server, cameraID, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pcm file: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(server, nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	defer conn.Close()

	// The connection carries one writer at a time; the pong replies below
	// come from the reader goroutine while the main loop streams audio, so
	// every write goes through the mutex.
	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}
	writeBinary := func(p []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(websocket.BinaryMessage, p)
	}

	// Drain server messages in the background, answering keepalive pings.
	msgs := make(chan relay.ServerMessage, 8)
	go func() {
		defer close(msgs)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg relay.ServerMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			if msg.Type == relay.MsgPing {
				writeJSON(relay.ControlMessage{Type: relay.MsgPong})
				continue
			}
			msgs <- msg
		}
	}()

	if err := writeJSON(relay.ControlMessage{Type: relay.MsgStart, CameraID: cameraID}); err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	if err := awaitType(msgs, relay.MsgStarted, 10*time.Second); err != nil {
		return err
	}
	fmt.Printf("Session started on %s, streaming %d bytes...\n", cameraID, len(data))

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for off := 0; off < len(data); off += frameBytes {
		<-ticker.C
		end := off + frameBytes
		if end > len(data) {
			end = len(data)
		}
		if err := writeBinary(data[off:end]); err != nil {
			return fmt.Errorf("send audio frame: %w", err)
		}
	}

	if err := writeJSON(relay.ControlMessage{Type: relay.MsgStop}); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}
	if err := awaitType(msgs, relay.MsgStopped, 10*time.Second); err != nil {
		return err
	}
	fmt.Println("Playback complete")
	return nil
}

// awaitType waits for a message of the wanted type, treating an error
// message or a closed stream as failure.
func awaitType(msgs <-chan relay.ServerMessage, want string, timeout time.Duration) error {
	deadline := time.After(timeout)
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("connection closed waiting for %q", want)
			}
			switch msg.Type {
			case want:
				return nil
			case relay.MsgError:
				return fmt.Errorf("relay error: %s", msg.Message)
			}
		case <-deadline:
			return fmt.Errorf("timed out waiting for %q", want)
		}
	}
}
