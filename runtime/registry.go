// Package runtime handles presence tracking, message routing, and event
// propagation. It orchestrates the system without containing business
// logic or domain rules.
package runtime

import (
	"sync"

	"you-chat/contract"
	"you-chat/domain"
)

type session struct {
	connID string
	sink   contract.EventSink
}

// Registry is the authoritative in-memory record of which users currently
// hold a live connection. It is the only mutable state shared across
// connection handlers, so every operation takes the mutex; nothing here
// may block on I/O while holding it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]session // userID -> live connection
	order    []string           // userIDs in registration order
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]session),
	}
}

// Register binds a user to a connection unless one is already bound.
// A second connection for an online user is not tracked: the first
// registered connection wins until it disconnects.
func (r *Registry) Register(userID, connID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[userID]; ok {
		return false
	}
	r.sessions[userID] = session{connID: connID, sink: sink}
	r.order = append(r.order, userID)
	return true
}

// Unregister removes the entry owning connID. The linear scan over the
// current entries matches the scale this registry serves.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, s := range r.sessions {
		if s.connID != connID {
			continue
		}
		delete(r.sessions, userID)
		for i, id := range r.order {
			if id == userID {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		return true
	}
	return false
}

func (r *Registry) Lookup(userID string) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[userID]
	if !ok {
		return nil, false
	}
	return s.sink, true
}

// Snapshot returns the current entries in registration order, for the
// full-refresh presence broadcast.
func (r *Registry) Snapshot() []domain.PresenceEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]domain.PresenceEntry, 0, len(r.order))
	for _, userID := range r.order {
		entries = append(entries, domain.PresenceEntry{
			UserID: userID,
			ConnID: r.sessions[userID].connID,
		})
	}
	return entries
}

// Sinks returns every live connection's sink, for broadcasts.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sinks := make([]contract.EventSink, 0, len(r.order))
	for _, userID := range r.order {
		sinks = append(sinks, r.sessions[userID].sink)
	}
	return sinks
}
