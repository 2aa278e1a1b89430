// Package presence tracks which live connection is bound to which
// client-chosen identity.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/roomchat/internal/chaterr"
)

// SessionID is the opaque handle of one live connection.
type SessionID string

// NewSessionID returns a fresh random session handle.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (s SessionID) String() string {
	return string(s)
}

// Registry is the bidirectional session <-> identity map. Both directions are
// always written and removed together.
type Registry struct {
	mu         sync.RWMutex
	identities map[SessionID]string
	sessions   map[string]SessionID
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		identities: make(map[SessionID]string),
		sessions:   make(map[string]SessionID),
	}
}

// Register binds identity to session. A later registration of the same
// identity silently supersedes the earlier session, and re-registering a
// session releases its previous identity.
func (r *Registry) Register(session SessionID, identity string) error {
	if identity == "" {
		return chaterr.Validation("register", "identity is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.identities[session]; ok && previous != identity {
		delete(r.sessions, previous)
	}
	if holder, ok := r.sessions[identity]; ok && holder != session {
		delete(r.identities, holder)
	}

	r.identities[session] = identity
	r.sessions[identity] = session
	return nil
}

// Identity returns the identity bound to session, if any.
func (r *Registry) Identity(session SessionID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.identities[session]
	return identity, ok
}

// ResolveIdentity returns the identity bound to session, falling back to the
// session handle itself for unregistered connections.
func (r *Registry) ResolveIdentity(session SessionID) string {
	if identity, ok := r.Identity(session); ok {
		return identity
	}
	return string(session)
}

// ResolveSession returns the session currently bound to identity.
func (r *Registry) ResolveSession(identity string) (SessionID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[identity]
	if !ok {
		return "", chaterr.NotFound("resolve-session", "user %q is not connected", identity)
	}
	return session, nil
}

// Unregister removes the binding of session. It reports whether a binding
// existed; calling it for an unknown session is a no-op.
func (r *Registry) Unregister(session SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.identities[session]
	if !ok {
		return false
	}
	delete(r.identities, session)
	if r.sessions[identity] == session {
		delete(r.sessions, identity)
	}
	return true
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.identities)
}
