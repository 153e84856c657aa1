// Package event defines the wire-level events exchanged over a
// collaboration connection. Envelopes are immutable once constructed
// and never persisted: delivery is best-effort, fire-and-forget.
package event

import (
	"time"

	"video2tool/domain"
)

type Type string

// Client to server.
const (
	TypeAuthenticate Type = "authenticate"
	TypeJoinProject  Type = "join_project"
	TypeLeaveProject Type = "leave_project"
	TypeUserActivity Type = "user_activity"
)

// Server to client, or re-broadcast both ways.
const (
	TypeAuthenticated       Type = "authenticated"
	TypeAuthenticationError Type = "authentication_error"
	TypeUserJoined          Type = "user_joined"
	TypeUserLeft            Type = "user_left"
	TypeTaskUpdated         Type = "task_updated"
	TypeTaskMoved           Type = "task_moved"
	TypeNotification        Type = "notification"
	TypeAck                 Type = "ack"
)

// Envelope is the JSON frame carried over the transport.
// Ack is a client-assigned correlation id, present only on
// request/ack exchanges (join_project).
type Envelope struct {
	Type    Type           `json:"type"`
	Ack     *uint64        `json:"ack,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Payload keys shared between server and client.
const (
	KeyIdentity  = "identity"
	KeyTimestamp = "timestamp"
	KeyProject   = "projectId"
	KeyTask      = "taskId"
	KeyActivity  = "activity"
	KeyMessage   = "message"
	KeyToken     = "token"
	KeyID        = "id"
	KeySuccess   = "success"
	KeyError     = "error"
	KeyLevel     = "type"
	KeyRead      = "read"
)

// Stamp formats a server-assigned timestamp for the wire.
func Stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func NewAuthenticated() Envelope {
	return Envelope{Type: TypeAuthenticated, Payload: map[string]any{}}
}

func NewAuthenticationError(message string) Envelope {
	return Envelope{
		Type:    TypeAuthenticationError,
		Payload: map[string]any{KeyMessage: message},
	}
}

func NewUserJoined(identity domain.Identity, at time.Time) Envelope {
	return Envelope{
		Type: TypeUserJoined,
		Payload: map[string]any{
			KeyIdentity:  string(identity),
			KeyTimestamp: Stamp(at),
		},
	}
}

func NewUserLeft(identity domain.Identity, at time.Time) Envelope {
	return Envelope{
		Type: TypeUserLeft,
		Payload: map[string]any{
			KeyIdentity:  string(identity),
			KeyTimestamp: Stamp(at),
		},
	}
}

func NewUserActivity(identity domain.Identity, activity string, at time.Time) Envelope {
	return Envelope{
		Type: TypeUserActivity,
		Payload: map[string]any{
			KeyIdentity:  string(identity),
			KeyActivity:  activity,
			KeyTimestamp: Stamp(at),
		},
	}
}

// NewTaskEvent re-broadcasts a task mutation with sender identity and a
// server-assigned timestamp. Any identity or timestamp field present in
// the inbound payload is overwritten, not merged.
func NewTaskEvent(typ Type, identity domain.Identity, project domain.ProjectID,
	payload map[string]any, at time.Time) Envelope {
	enriched := make(map[string]any, len(payload)+3)
	for k, v := range payload {
		enriched[k] = v
	}
	enriched[KeyIdentity] = string(identity)
	enriched[KeyProject] = string(project)
	enriched[KeyTimestamp] = Stamp(at)
	return Envelope{Type: typ, Payload: enriched}
}

func NewNotification(n domain.Notification) Envelope {
	return Envelope{
		Type: TypeNotification,
		Payload: map[string]any{
			KeyID:        n.ID.String(),
			KeyLevel:     string(n.Level),
			KeyMessage:   n.Message,
			KeyTimestamp: Stamp(n.CreatedAt),
			KeyRead:      n.Read,
		},
	}
}

// NewAck answers a request/ack exchange. A nil err acknowledges success.
func NewAck(id uint64, err error) Envelope {
	payload := map[string]any{KeyID: id}
	if err != nil {
		payload[KeyError] = err.Error()
	} else {
		payload[KeySuccess] = true
	}
	return Envelope{Type: TypeAck, Payload: payload}
}
