// Package domain contains core concepts of the collaboration system.
// This file defines identities and presence. Identities are opaque
// references attached to a connection after credential verification.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the opaque user identifier carried by a connection.
// It is derived once per connection from a verified credential and
// is immutable for the connection's lifetime.
type Identity string

// PresenceStatus is the client-observable state of a collaborator.
type PresenceStatus string

const (
	Online  PresenceStatus = "online"
	Idle    PresenceStatus = "idle"
	Offline PresenceStatus = "offline"
)
