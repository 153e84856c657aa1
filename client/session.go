// Package client implements the collaboration session facade the UI
// layers build on. It hides the transport lifecycle: connect with
// bounded retries, authenticate, join rooms with acked replies, emit
// fire-and-forget events, and subscribe to inbound broadcasts.
//
// Joined-room state is not preserved across a disconnect: after a
// reconnect the caller re-authenticates and re-joins, matching the
// server-side cleanup cascade.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/errors"
)

// Handler consumes an inbound envelope. A panicking handler is
// recovered and logged, never propagated to the transport or to other
// handlers.
type Handler func(e event.Envelope)

type Config struct {
	URL              string
	MaxRetries       int
	RetryDelay       time.Duration
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	return c
}

type Session struct {
	log *slog.Logger
	cfg Config

	mu sync.Mutex // guards ws and serializes writes
	ws *websocket.Conn

	handlersMu sync.RWMutex
	handlers   map[event.Type]map[uintptr]Handler

	pendingMu   sync.Mutex
	ackSeq      uint64
	pendingAcks map[uint64]chan error
	authResult  chan error
}

func NewSession(log *slog.Logger, cfg Config) *Session {
	return &Session{
		log:         log,
		cfg:         cfg.withDefaults(),
		handlers:    make(map[event.Type]map[uintptr]Handler),
		pendingAcks: make(map[uint64]chan error),
	}
}

// Connect dials the server, retrying a bounded number of times with a
// fixed delay. It resolves once the transport reports connected.
// Dialing happens outside the session lock so concurrent emits and
// Disconnect never stall behind the retry backoff.
func (s *Session) Connect(ctx context.Context) error {
	if s.connected() {
		return nil
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		ws, _, err := dialer.DialContext(ctx, s.cfg.URL, nil)
		if err == nil {
			return s.install(ws)
		}
		lastErr = err
		s.log.Debug("Connect attempt failed", "attempt", attempt+1, "err", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryDelay):
		}
	}
	return fmt.Errorf("connect failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *Session) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws != nil
}

// install attaches the dialed transport unless a concurrent Connect
// already won, in which case the extra connection is discarded.
func (s *Session) install(ws *websocket.Conn) error {
	s.mu.Lock()
	if s.ws != nil {
		s.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	s.ws = ws
	s.mu.Unlock()
	go s.readLoop(ws)
	return nil
}

// Authenticate resolves on the server's authenticated reply and fails
// on authentication_error. Callers must serialize: a second call before
// the first resolves is undefined.
func (s *Session) Authenticate(ctx context.Context, token string) error {
	result := make(chan error, 1)
	s.pendingMu.Lock()
	s.authResult = result
	s.pendingMu.Unlock()

	if err := s.write(event.Envelope{
		Type:    event.TypeAuthenticate,
		Payload: map[string]any{event.KeyToken: token},
	}); err != nil {
		s.pendingMu.Lock()
		s.authResult = nil
		s.pendingMu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// JoinProject resolves on the server's direct acknowledgment, not on
// the user_joined broadcast.
func (s *Session) JoinProject(ctx context.Context, project domain.ProjectID) error {
	s.pendingMu.Lock()
	s.ackSeq++
	id := s.ackSeq
	result := make(chan error, 1)
	s.pendingAcks[id] = result
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pendingAcks, id)
		s.pendingMu.Unlock()
	}()

	if err := s.write(event.Envelope{
		Type:    event.TypeJoinProject,
		Ack:     &id,
		Payload: map[string]any{event.KeyProject: string(project)},
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-result:
		return err
	}
}

// LeaveProject is fire-and-forget: no acknowledgment is expected.
func (s *Session) LeaveProject(project domain.ProjectID) {
	_ = s.write(event.Envelope{
		Type:    event.TypeLeaveProject,
		Payload: map[string]any{event.KeyProject: string(project)},
	})
}

func (s *Session) SendTaskUpdate(project domain.ProjectID, taskID string, fields map[string]any) {
	s.sendTask(event.TypeTaskUpdated, project, taskID, fields)
}

func (s *Session) SendTaskMove(project domain.ProjectID, taskID string, fields map[string]any) {
	s.sendTask(event.TypeTaskMoved, project, taskID, fields)
}

func (s *Session) sendTask(typ event.Type, project domain.ProjectID, taskID string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		payload[k] = v
	}
	payload[event.KeyTask] = taskID
	payload[event.KeyProject] = string(project)
	_ = s.write(event.Envelope{Type: typ, Payload: payload})
}

func (s *Session) SendActivity(project domain.ProjectID, activity string) {
	_ = s.write(event.Envelope{
		Type: event.TypeUserActivity,
		Payload: map[string]any{
			event.KeyProject:  string(project),
			event.KeyActivity: activity,
		},
	})
}

// On subscribes a handler to an event type. Handlers are stored as a
// set: registering the same handler reference twice is a no-op.
func (s *Session) On(typ event.Type, h Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	if _, ok := s.handlers[typ]; !ok {
		s.handlers[typ] = make(map[uintptr]Handler)
	}
	s.handlers[typ][reflect.ValueOf(h).Pointer()] = h
}

func (s *Session) Off(typ event.Type, h Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	delete(s.handlers[typ], reflect.ValueOf(h).Pointer())
}

// Disconnect tears the transport down. The application-level handler
// registry survives so a later Connect can reuse it.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.ws != nil {
		_ = s.ws.Close()
		s.ws = nil
	}
	s.mu.Unlock()
	s.failPending(errors.ErrSinkClosed)
}

func (s *Session) write(env event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ws == nil {
		return errors.ErrSinkClosed
	}
	return s.ws.WriteJSON(env)
}

func (s *Session) readLoop(ws *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		if s.ws == ws {
			s.ws = nil
		}
		s.mu.Unlock()
		s.failPending(errors.ErrSinkClosed)
	}()

	for {
		var env event.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			s.log.Debug("Transport closed", "err", err)
			return
		}
		s.route(env)
		s.dispatch(env)
	}
}

// route resolves the request/ack exchanges: authenticate replies and
// join acknowledgments.
func (s *Session) route(env event.Envelope) {
	switch env.Type {
	case event.TypeAuthenticated:
		s.resolveAuth(nil)
	case event.TypeAuthenticationError:
		message, _ := env.Payload[event.KeyMessage].(string)
		s.resolveAuth(fmt.Errorf("%w: %s", errors.ErrInvalidToken, message))
	case event.TypeAck:
		raw, _ := env.Payload[event.KeyID].(float64)
		var err error
		if message, ok := env.Payload[event.KeyError].(string); ok {
			err = fmt.Errorf("join rejected: %s", message)
		}
		s.resolveAck(uint64(raw), err)
	}
}

func (s *Session) resolveAuth(err error) {
	s.pendingMu.Lock()
	result := s.authResult
	s.authResult = nil
	s.pendingMu.Unlock()
	if result != nil {
		result <- err
	}
}

func (s *Session) resolveAck(id uint64, err error) {
	s.pendingMu.Lock()
	result, ok := s.pendingAcks[id]
	delete(s.pendingAcks, id)
	s.pendingMu.Unlock()
	if ok {
		result <- err
	}
}

func (s *Session) failPending(err error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if s.authResult != nil {
		s.authResult <- err
		s.authResult = nil
	}
	for id, result := range s.pendingAcks {
		result <- err
		delete(s.pendingAcks, id)
	}
}

func (s *Session) dispatch(env event.Envelope) {
	s.handlersMu.RLock()
	handlers := make([]Handler, 0, len(s.handlers[env.Type]))
	for _, h := range s.handlers[env.Type] {
		handlers = append(handlers, h)
	}
	s.handlersMu.RUnlock()

	for _, h := range handlers {
		s.invoke(env, h)
	}
}

func (s *Session) invoke(env event.Envelope, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("Event handler panicked", "type", env.Type, "panic", r)
		}
	}()
	h(env)
}
