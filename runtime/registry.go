// Package runtime holds the in-memory delivery machinery: the
// connection registry and the broadcast dispatcher. Nothing here is
// durable; the message log is the source of truth.
package runtime

import (
	"sync"

	"directory-chat/contract"
	"directory-chat/domain"
)

type connSet map[contract.Conn]struct{}

// Registry is the multi-map from identity to live connection handles.
// A user with several devices owns several handles; removal is by
// handle identity through the owner back-reference, never by scanning.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]connSet
	owner map[contract.Conn]string
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]connSet),
		owner: make(map[contract.Conn]string),
	}
}

// Register adds a handle under userID, next to any handles the user
// already holds.
func (r *Registry) Register(userID string, conn contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[userID]; !ok {
		r.conns[userID] = make(connSet)
	}
	r.conns[userID][conn] = struct{}{}
	r.owner[conn] = userID
}

// Remove deletes a handle wherever it is registered. Safe to call for
// handles that never authenticated; called unconditionally on transport
// close so no handle can leak.
func (r *Registry) Remove(conn contract.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.owner[conn]
	if !ok {
		return
	}
	delete(r.owner, conn)

	if handles, ok := r.conns[userID]; ok {
		delete(handles, conn)
		// No empty sets left behind, to prevent slow map growth.
		if len(handles) == 0 {
			delete(r.conns, userID)
		}
	}
}

// IsOnline reports whether at least one handle is registered for userID.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

// SendTo delivers the envelope to every registered handle of userID.
// Best-effort and synchronous: a handle whose transport is not ready is
// skipped, a failing handle is ignored, nothing is queued or retried.
func (r *Registry) SendTo(userID string, envelope domain.Envelope) {
	r.mu.RLock()
	handles := make([]contract.Conn, 0, len(r.conns[userID]))
	for conn := range r.conns[userID] {
		handles = append(handles, conn)
	}
	r.mu.RUnlock()

	for _, conn := range handles {
		if !conn.Ready() {
			continue
		}
		// One stale handle must not prevent delivery to the others.
		_ = conn.Send(envelope)
	}
}
