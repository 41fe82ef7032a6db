package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talkback-relay/internal/config"
	"talkback-relay/internal/relay"
	"talkback-relay/internal/store"
)

type fakeEvents struct {
	events []store.Event
	err    error
	limit  int
}

func (f *fakeEvents) ListEvents(limit int) ([]store.Event, error) {
	f.limit = limit
	return f.events, f.err
}

func newTestServer(events EventSource) *Server {
	cameras := map[string]config.CameraAddress{
		"cam-1": {IP: "192.168.1.40", Port: 5002},
		"cam-2": {IP: "192.168.1.41", Port: 5002},
	}
	return NewServer("127.0.0.1:0", relay.NewRegistry(), cameras, events)
}

func get(t *testing.T, s *Server, path string) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Router().ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(nil)

	code, body := get(t, s, "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(0), body["activeSessions"])
	assert.Equal(t, float64(2), body["cameras"])
	assert.Contains(t, body, "uptime")
}

func TestSessionsEmpty(t *testing.T) {
	s := newTestServer(nil)

	code, body := get(t, s, "/v1/sessions")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["sessions"])
}

func TestSessionsListsActive(t *testing.T) {
	reg := relay.NewRegistry()
	sess := relay.NewSession("cam-1", "ffmpeg", 0, reg)
	require.NoError(t, reg.Claim("cam-1", sess))

	s := NewServer("127.0.0.1:0", reg, map[string]config.CameraAddress{}, nil)

	code, body := get(t, s, "/v1/sessions")
	assert.Equal(t, http.StatusOK, code)

	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	entry := sessions[0].(map[string]any)
	assert.Equal(t, sess.ID, entry["id"])
	assert.Equal(t, "cam-1", entry["cameraId"])
	assert.Equal(t, "starting", entry["state"])
	assert.Contains(t, entry, "uptimeSeconds")
}

func TestCameras(t *testing.T) {
	s := newTestServer(nil)

	code, body := get(t, s, "/v1/cameras")
	assert.Equal(t, http.StatusOK, code)
	cameras := body["cameras"].([]any)
	require.Len(t, cameras, 2)

	ids := map[string]bool{}
	for _, c := range cameras {
		entry := c.(map[string]any)
		ids[entry["cameraId"].(string)] = true
		assert.NotEmpty(t, entry["address"])
	}
	assert.True(t, ids["cam-1"])
	assert.True(t, ids["cam-2"])
}

func TestEvents(t *testing.T) {
	src := &fakeEvents{events: []store.Event{
		{ID: "ev1", CameraID: "cam-1", Type: "started", CreatedAt: time.Now()},
	}}
	s := newTestServer(src)

	code, body := get(t, s, "/v1/events?limit=5")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 5, src.limit)

	events := body["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "started", events[0].(map[string]any)["type"])
}

func TestEventsLimitClamped(t *testing.T) {
	src := &fakeEvents{}
	s := newTestServer(src)

	code, _ := get(t, s, "/v1/events?limit=9999")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 500, src.limit)
}

func TestEventsNoStore(t *testing.T) {
	s := newTestServer(nil)

	code, body := get(t, s, "/v1/events")
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["events"])
}

func TestMetricsExposed(t *testing.T) {
	s := newTestServer(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
