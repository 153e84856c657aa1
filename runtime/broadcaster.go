package runtime

import (
	"log/slog"
	"sync/atomic"

	"video2tool/contract"
	"video2tool/domain"
	"video2tool/domain/event"
)

// Broadcaster fans events out to the connections behind a computed
// recipient set. Delivery is best-effort with no guarantees regarding
// ordering across connections, durability, or retries: an identity with
// no live connection is silently skipped, not an error. It may have
// disconnected between membership update and broadcast, a race the
// design tolerates.
//
// Broadcaster is not a message broker. It is safe for concurrent use.
type Broadcaster struct {
	log        *slog.Logger
	registry   contract.IRegistry
	membership contract.IMembership

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry,
	membership contract.IMembership) *Broadcaster {
	return &Broadcaster{log: log, registry: registry, membership: membership}
}

// ToRoom delivers to every connection currently registered for every
// member of the room, the sender included.
func (b *Broadcaster) ToRoom(project domain.ProjectID, e event.Envelope) {
	b.ToRoomExcept(project, "", e)
}

// ToRoomExcept delivers to every room member but the excluded identity.
// Used for user_joined and user_activity, which never echo to the sender.
func (b *Broadcaster) ToRoomExcept(project domain.ProjectID, except domain.Identity, e event.Envelope) {
	for _, id := range b.membership.MembersOf(project) {
		if id == except {
			continue
		}
		b.ToIdentity(id, e)
	}
}

// ToIdentity delivers only if the identity has a live connection,
// otherwise it silently no-ops.
func (b *Broadcaster) ToIdentity(id domain.Identity, e event.Envelope) {
	sink, ok := b.registry.Lookup(id)
	if !ok {
		return
	}
	b.send(sink, e)
}

func (b *Broadcaster) ToAll(e event.Envelope) {
	for _, sink := range b.registry.Sinks() {
		b.send(sink, e)
	}
}

func (b *Broadcaster) send(sink contract.EventSink, e event.Envelope) {
	if err := sink.Send(e); err != nil {
		b.dropped.Add(1)
		b.log.Debug("Event dropped", "type", e.Type, "err", err)
		return
	}
	b.delivered.Add(1)
}

// Delivered and Dropped expose running totals for telemetry.
func (b *Broadcaster) Delivered() uint64 { return b.delivered.Load() }

func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }
