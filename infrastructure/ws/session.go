package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"video2tool/contract"
	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/errors"
)

// session is the per-connection state machine. identity stays empty
// until an authenticate exchange succeeds; a failed attempt leaves the
// connection open so the client may retry. Inbound events are processed
// strictly in arrival order: every broadcast triggered by one event is
// handed to the transport before the next event is read.
type session struct {
	log      *slog.Logger
	conn     *Conn
	service  contract.ICollabService
	identity domain.Identity
}

// readLoop blocks until the peer disconnects or the transport fails,
// both of which funnel into the same cleanup cascade.
func (s *session) readLoop(ws *websocket.Conn) {
	defer func() {
		s.service.Disconnect(s.identity, s.conn)
		s.conn.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env event.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			s.log.Debug("Connection closed", "identity", s.identity, "err", err)
			return
		}
		s.handle(env)
	}
}

func (s *session) handle(env event.Envelope) {
	switch env.Type {
	case event.TypeAuthenticate:
		// Identity is immutable for the connection's lifetime. Allowing
		// a re-authenticate would orphan the first identity's registry
		// entry and room memberships, since disconnect cleanup only
		// runs for the identity attached at close time.
		if s.identity != "" {
			_ = s.conn.Send(event.NewAuthenticationError(errors.ErrAlreadyAuthenticated.Error()))
			return
		}
		token, _ := env.Payload[event.KeyToken].(string)
		identity, err := s.service.Authenticate(token, s.conn)
		if err != nil {
			_ = s.conn.Send(event.NewAuthenticationError(err.Error()))
			return
		}
		s.identity = identity
		_ = s.conn.Send(event.NewAuthenticated())

	case event.TypeJoinProject:
		err := s.service.JoinProject(s.identity, s.project(env))
		if env.Ack != nil {
			_ = s.conn.Send(event.NewAck(*env.Ack, err))
		}

	case event.TypeLeaveProject:
		s.service.LeaveProject(s.identity, s.project(env))

	case event.TypeTaskUpdated, event.TypeTaskMoved:
		if err := s.service.TaskEvent(env.Type, s.identity, s.project(env), env.Payload); err != nil {
			s.log.Debug("Task event dropped", "type", env.Type, "err", err)
		}

	case event.TypeUserActivity:
		activity, _ := env.Payload[event.KeyActivity].(string)
		if err := s.service.Activity(s.identity, s.project(env), activity); err != nil {
			s.log.Debug("Activity dropped", "err", err)
		}

	default:
		s.log.Debug("Unknown event type", "type", env.Type)
	}
}

func (s *session) project(env event.Envelope) domain.ProjectID {
	project, _ := env.Payload[event.KeyProject].(string)
	return domain.ProjectID(project)
}
