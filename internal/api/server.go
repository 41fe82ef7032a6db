package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"talkback-relay/internal/config"
	"talkback-relay/internal/relay"
	"talkback-relay/internal/store"
)

// EventSource is the slice of the event store the API reads from.
type EventSource interface {
	ListEvents(limit int) ([]store.Event, error)
}

// Server is the read-only operational surface: health, active sessions,
// the camera table, recent events and Prometheus metrics. It binds to
// loopback by default and carries no authentication; it is meant for
// local process supervision, not public exposure.
type Server struct {
	registry *relay.Registry
	cameras  map[string]config.CameraAddress
	events   EventSource
	started  time.Time

	srv *http.Server
}

func NewServer(addr string, registry *relay.Registry, cameras map[string]config.CameraAddress, events EventSource) *Server {
	s := &Server{
		registry: registry,
		cameras:  cameras,
		events:   events,
		started:  time.Now(),
	}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Router builds the gin handler; exposed separately for tests.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.GET("/v1/sessions", s.handleSessions)
	r.GET("/v1/cameras", s.handleCameras)
	r.GET("/v1/events", s.handleEvents)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"activeSessions": s.registry.Len(),
		"cameras":        len(s.cameras),
		"uptime":         int64(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	active := s.registry.Active()
	sessions := make([]gin.H, 0, len(active))
	for _, sess := range active {
		sessions = append(sessions, gin.H{
			"id":            sess.ID,
			"cameraId":      sess.CameraID,
			"state":         sess.State(),
			"uptimeSeconds": int64(sess.Uptime().Seconds()),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleCameras(c *gin.Context) {
	cameras := make([]gin.H, 0, len(s.cameras))
	for id, addr := range s.cameras {
		cameras = append(cameras, gin.H{
			"cameraId": id,
			"address":  addr.UDPAddr(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	if s.events == nil {
		c.JSON(http.StatusOK, gin.H{"events": []store.Event{}})
		return
	}

	events, err := s.events.ListEvents(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
