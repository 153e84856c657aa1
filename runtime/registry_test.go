package runtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"video2tool/domain"
	"video2tool/domain/event"
)

// recordingSink collects every envelope it receives.
type recordingSink struct {
	events []event.Envelope
}

func (s *recordingSink) Send(e event.Envelope) error {
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() {}

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := domain.Identity(uuid.NewString())
	sink := &recordingSink{}

	// Given an empty registry
	req.Zero(registry.Size())

	// When an identity registers its connection
	registry.Register(identity, sink)

	// Then the connection is resolvable
	got, ok := registry.Lookup(identity)
	req.True(ok)
	req.Same(sink, got)
	req.Equal(1, registry.Size())
}

func TestRegistry_Register_LastConnectionWins(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := domain.Identity(uuid.NewString())
	first := &recordingSink{}
	second := &recordingSink{}

	// Given an identity already connected
	registry.Register(identity, first)

	// When the same identity opens a second connection
	registry.Register(identity, second)

	// Then the latest connection is used for targeted delivery
	got, ok := registry.Lookup(identity)
	req.True(ok)
	req.Same(second, got)
	req.Equal(1, registry.Size())
}

func TestRegistry_Unregister_RemovesEntry(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := domain.Identity(uuid.NewString())
	sink := &recordingSink{}

	registry.Register(identity, sink)

	// When the identity disconnects
	registry.Unregister(identity, sink)

	// Then the entry is gone
	_, ok := registry.Lookup(identity)
	req.False(ok)
	req.Zero(registry.Size())
}

func TestRegistry_Unregister_StaleConnectionIsIgnored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	identity := domain.Identity(uuid.NewString())
	old := &recordingSink{}
	current := &recordingSink{}

	// Given a reconnect superseded the first connection
	registry.Register(identity, old)
	registry.Register(identity, current)

	// When the superseded connection finally disconnects
	registry.Unregister(identity, old)

	// Then the newer entry survives
	got, ok := registry.Lookup(identity)
	req.True(ok)
	req.Same(current, got)
}

func TestRegistry_Sinks_SnapshotsEveryConnection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := &recordingSink{}
	sink2 := &recordingSink{}

	registry.Register(domain.Identity(uuid.NewString()), sink1)
	registry.Register(domain.Identity(uuid.NewString()), sink2)

	sinks := registry.Sinks()
	req.Len(sinks, 2)
	req.Contains(sinks, sink1)
	req.Contains(sinks, sink2)
}
