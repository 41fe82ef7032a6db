package relay

import "sync"

// Registry maps each camera to its single active session, enforcing that
// at most one operator drives a given speaker at a time. Claim is a single
// check-and-insert under the mutex, so concurrent starts for the same
// camera always observe each other.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Claim reserves the camera slot for s. Returns ErrCameraBusy if another
// session holds it.
func (r *Registry) Claim(cameraID string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[cameraID]; exists {
		return ErrCameraBusy
	}
	r.sessions[cameraID] = s
	activeSessions.Inc()
	return nil
}

// Release frees the camera slot, but only if s still owns it. Called
// synchronously from session teardown after resources are released, so a
// concurrent start never observes an entry whose subprocess or socket is
// still live.
func (r *Registry) Release(cameraID string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[cameraID]; ok && cur == s {
		delete(r.sessions, cameraID)
		activeSessions.Dec()
	}
}

// Get returns the session owning cameraID, or nil.
func (r *Registry) Get(cameraID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[cameraID]
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Active returns a snapshot of the currently registered sessions.
func (r *Registry) Active() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
