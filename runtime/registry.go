// Package runtime holds the process-wide collaboration state: which
// identity is reachable on which connection, and who is in which room.
// It orchestrates delivery without containing business logic.
package runtime

import (
	"sync"

	"video2tool/contract"
	"video2tool/domain"
)

// Registry maps an authenticated identity to its live connection sink.
// Lifecycle is the process lifetime: a restart loses every entry and
// clients must reconnect and re-authenticate.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.Identity]contract.EventSink
}

func NewRegistry() *Registry {
	return &Registry{connections: make(map[domain.Identity]contract.EventSink)}
}

// Register attaches an identity to its connection. A reconnecting
// identity overwrites its previous entry: the last-authenticated
// connection wins targeted delivery, the older one is not dual-delivered.
func (r *Registry) Register(id domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[id] = sink
}

// Unregister removes the entry only if it still maps to the given sink.
// A stale unregister from a superseded connection must not evict the
// newer one.
func (r *Registry) Unregister(id domain.Identity, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.connections[id]; ok && current == sink {
		delete(r.connections, id)
	}
}

func (r *Registry) Lookup(id domain.Identity) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sink, ok := r.connections[id]
	return sink, ok
}

// Sinks snapshots every live connection, for broadcast-to-all delivery.
func (r *Registry) Sinks() []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sinks := make([]contract.EventSink, 0, len(r.connections))
	for _, sink := range r.connections {
		sinks = append(sinks, sink)
	}
	return sinks
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}
