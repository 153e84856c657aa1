package domain

import (
	"time"

	"github.com/google/uuid"
)

type NotificationLevel string

const (
	NotifyInfo    NotificationLevel = "info"
	NotifySuccess NotificationLevel = "success"
	NotifyWarning NotificationLevel = "warning"
	NotifyError   NotificationLevel = "error"
)

// Notification is a generic alert pushed to clients. The Read flag is
// owned by the receiving client; the server always emits it unread.
// Target is the recipient identity; nil means every live connection.
type Notification struct {
	ID        uuid.UUID
	Level     NotificationLevel
	Message   string
	CreatedAt time.Time
	Read      bool
	Target    *Identity
}

func NewNotification(level NotificationLevel, message string, target *Identity) Notification {
	return Notification{
		ID:        uuid.New(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now().UTC(),
		Target:    target,
	}
}
