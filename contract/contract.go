//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"video2tool/domain"
	"video2tool/domain/event"
)

// EventSink is a live connection as seen by the server core. Send must
// never block on a slow peer: implementations queue or drop.
type EventSink interface {
	Send(e event.Envelope) error
	Close()
}

// IRegistry maps an authenticated identity to its live connection.
// Last-authenticated connection wins targeted delivery.
type IRegistry interface {
	Register(id domain.Identity, sink EventSink)
	Unregister(id domain.Identity, sink EventSink)
	Lookup(id domain.Identity) (EventSink, bool)
	Sinks() []EventSink
	Size() int
}

// IMembership tracks which identities are joined to which project room.
type IMembership interface {
	Join(project domain.ProjectID, id domain.Identity)
	Leave(project domain.ProjectID, id domain.Identity)
	MembersOf(project domain.ProjectID) []domain.Identity
	LeaveAll(id domain.Identity) []domain.ProjectID
	Rooms() int
}

// IBroadcaster delivers events to computed recipient sets, best-effort.
// Identities without a live connection are silently skipped.
type IBroadcaster interface {
	ToRoom(project domain.ProjectID, e event.Envelope)
	ToRoomExcept(project domain.ProjectID, except domain.Identity, e event.Envelope)
	ToIdentity(id domain.Identity, e event.Envelope)
	ToAll(e event.Envelope)
}

// IVerifier checks a credential and resolves the identity behind it.
type IVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// ICensor screens user-provided text before re-broadcast.
type ICensor interface {
	Censor(text string) string
}

// ICompleter is the contract of the external text-generation service.
// Implementations retry a bounded number of times and substitute a
// fallback model before giving up.
type ICompleter interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}

type ICollabService interface {
	Authenticate(token string, sink EventSink) (domain.Identity, error)
	JoinProject(id domain.Identity, project domain.ProjectID) error
	LeaveProject(id domain.Identity, project domain.ProjectID)
	TaskEvent(typ event.Type, id domain.Identity, project domain.ProjectID, payload map[string]any) error
	Activity(id domain.Identity, project domain.ProjectID, activity string) error
	Notify(id domain.Identity, level domain.NotificationLevel, message string)
	NotifyAll(level domain.NotificationLevel, message string)
	Disconnect(id domain.Identity, sink EventSink)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself: the supervisor recovers panics and
// restarts it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker,
// so workers stay nameless and supervision logs stay readable.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
