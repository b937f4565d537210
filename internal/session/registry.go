package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry maps live streaming-connection session IDs to resolved user IDs.
// Entries live for the duration of the connection: bound after token
// verification and identity resolution, released when the connection closes.
// There is no expiry sweep; a process restart drops everything, which is fine
// because clients reconnect and establish a fresh session.
type Registry struct {
	mu    sync.RWMutex
	users map[string]uuid.UUID
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]uuid.UUID),
	}
}

// Bind associates a session ID with a user ID.
func (r *Registry) Bind(sessionID string, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[sessionID] = userID
}

// Resolve returns the user ID bound to a session ID, if any.
func (r *Registry) Resolve(sessionID string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.users[sessionID]
	return userID, ok
}

// Release removes a session binding. Releasing an unknown session is a no-op.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, sessionID)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
