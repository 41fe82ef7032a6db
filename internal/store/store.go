package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists session lifecycle events to SQLite so operators can
// review who drove which camera and why a session ended.
type Store struct {
	db *sql.DB
}

// Event is one recorded session lifecycle event.
type Event struct {
	ID        string    `json:"id"`
	CameraID  string    `json:"cameraId"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Open connects to the database behind dsn ("sqlite:path" or a bare path)
// and ensures the schema exists.
func Open(dsn string) (*Store, error) {
	path := strings.TrimPrefix(dsn, "sqlite:")

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite is single-writer; keep the pool small
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			type TEXT NOT NULL,
			message TEXT DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_camera ON events(camera_id);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC);
	`)
	return err
}

// RecordEvent appends one event.
func (s *Store) RecordEvent(cameraID, eventType, message string) error {
	_, err := s.db.Exec(
		`INSERT INTO events (id, camera_id, type, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		generateID("ev"), cameraID, eventType, message, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, camera_id, type, message, created_at FROM events ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var ev Event
		var ts string
		if err := rows.Scan(&ev.ID, &ev.CameraID, &ev.Type, &ev.Message, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// generateID creates a unique ID with a prefix using crypto/rand
func generateID(prefix string) string {
	b := make([]byte, 8)
	rand.Read(b)
	return prefix + hex.EncodeToString(b)
}
