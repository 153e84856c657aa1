package services

import (
	"log/slog"
	"time"

	"video2tool/contract"
	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/errors"
)

// CollabService owns the server-side collaboration semantics: attaching
// identities to connections, room membership transitions, and the
// fan-out rules for every inbound event. Transport sessions call into
// it; it never touches the transport directly, only event sinks.
type CollabService struct {
	log           *slog.Logger
	verifier      contract.IVerifier
	registry      contract.IRegistry
	membership    contract.IMembership
	broadcaster   contract.IBroadcaster
	censor        contract.ICensor
	notifications chan domain.Notification
	now           func() time.Time
}

func NewCollabService(log *slog.Logger, verifier contract.IVerifier,
	registry contract.IRegistry, membership contract.IMembership,
	broadcaster contract.IBroadcaster, censor contract.ICensor,
	notificationBufferSize int) *CollabService {
	return &CollabService{
		log:           log,
		verifier:      verifier,
		registry:      registry,
		membership:    membership,
		broadcaster:   broadcaster,
		censor:        censor,
		notifications: make(chan domain.Notification, notificationBufferSize),
		now:           time.Now,
	}
}

// Authenticate verifies the credential and, on success, registers the
// connection for targeted delivery. A failure leaves the connection
// open and unauthenticated so the client may retry.
func (s *CollabService) Authenticate(token string, sink contract.EventSink) (domain.Identity, error) {
	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.log.Debug("Credential rejected", "err", err)
		return "", err
	}
	s.registry.Register(identity, sink)
	s.log.Info("Connection authenticated", "identity", identity)
	return identity, nil
}

// JoinProject adds the identity to the room and announces it to the
// members present before the join. The joiner itself never receives
// the user_joined broadcast; it gets a direct ack instead.
func (s *CollabService) JoinProject(id domain.Identity, project domain.ProjectID) error {
	if id == "" {
		return errors.ErrNotAuthenticated
	}
	if project == "" {
		return errors.ErrMissingProject
	}
	s.membership.Join(project, id)
	s.broadcaster.ToRoomExcept(project, id, event.NewUserJoined(id, s.now()))
	s.log.Info("Joined project", "identity", id, "project", project)
	return nil
}

// LeaveProject is fire-and-forget: silently ignored when the caller
// never authenticated.
func (s *CollabService) LeaveProject(id domain.Identity, project domain.ProjectID) {
	if id == "" || project == "" {
		return
	}
	s.membership.Leave(project, id)
	s.broadcaster.ToRoom(project, event.NewUserLeft(id, s.now()))
	s.log.Info("Left project", "identity", id, "project", project)
}

// TaskEvent re-broadcasts a task mutation to the entire room, sender
// included, with the sender identity and a fresh server timestamp
// overwriting whatever the payload carried.
func (s *CollabService) TaskEvent(typ event.Type, id domain.Identity,
	project domain.ProjectID, payload map[string]any) error {
	if id == "" {
		return errors.ErrNotAuthenticated
	}
	if project == "" {
		return errors.ErrMissingProject
	}
	s.broadcaster.ToRoom(project, event.NewTaskEvent(typ, id, project, payload, s.now()))
	return nil
}

// Activity re-broadcasts an ephemeral presence signal to every other
// room member. The activity text passes the censor first.
func (s *CollabService) Activity(id domain.Identity, project domain.ProjectID, activity string) error {
	if id == "" {
		return errors.ErrNotAuthenticated
	}
	if project == "" {
		return errors.ErrMissingProject
	}
	s.broadcaster.ToRoomExcept(project, id, event.NewUserActivity(id, s.censor.Censor(activity), s.now()))
	return nil
}

// Notify queues a targeted notification. Delivery happens through the
// notification fan-out worker; a full queue drops the notification,
// matching the best-effort contract.
func (s *CollabService) Notify(id domain.Identity, level domain.NotificationLevel, message string) {
	s.enqueue(domain.NewNotification(level, s.censor.Censor(message), &id))
}

func (s *CollabService) NotifyAll(level domain.NotificationLevel, message string) {
	s.enqueue(domain.NewNotification(level, s.censor.Censor(message), nil))
}

func (s *CollabService) enqueue(n domain.Notification) {
	select {
	case s.notifications <- n:
	default:
		s.log.Warn("Notification queue full, dropping", "level", n.Level)
	}
}

// Notifications exposes the queue drained by the fan-out worker.
func (s *CollabService) Notifications() <-chan domain.Notification {
	return s.notifications
}

// Disconnect runs the cleanup cascade for a closed connection: the
// identity leaves every room it belonged to, each vacated room is told
// exactly once, and the registry entry is removed only if it still
// points at this connection.
func (s *CollabService) Disconnect(id domain.Identity, sink contract.EventSink) {
	if id == "" {
		return
	}
	at := s.now()
	for _, project := range s.membership.LeaveAll(id) {
		s.broadcaster.ToRoom(project, event.NewUserLeft(id, at))
	}
	s.registry.Unregister(id, sink)
	s.log.Info("Connection cleaned up", "identity", id)
}
