package client

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"video2tool/auth"
	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/errors"
	"video2tool/infrastructure/ws"
	"video2tool/moderation"
	"video2tool/runtime"
	"video2tool/services"
)

const testSecret = "test_secret_long_enough_for_hs256"

type backend struct {
	server *httptest.Server
	tokens *auth.TokenService
}

func newBackend(t *testing.T) backend {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	tokens := auth.NewTokenService(testSecret, time.Hour)
	registry := runtime.NewRegistry()
	membership := runtime.NewMembership()
	broadcaster := runtime.NewBroadcaster(log, registry, membership)
	censor, err := moderation.NewCensor([]string{"badger"}, '*')
	require.NoError(t, err)

	service := services.NewCollabService(log, tokens, registry, membership, broadcaster, censor, 16)
	handler := ws.NewHandler(log, service, nil, 32)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(server.Close)
	return backend{server: server, tokens: tokens}
}

func (b backend) url() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b backend) session(t *testing.T) *Session {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s := NewSession(log, Config{URL: b.url(), MaxRetries: 1, RetryDelay: 50 * time.Millisecond})
	t.Cleanup(s.Disconnect)
	return s
}

func (b backend) token(t *testing.T, id domain.Identity) string {
	t.Helper()
	token, err := b.tokens.Generate(id)
	require.NoError(t, err)
	return token
}

func TestSessionLifecycle(t *testing.T) {
	require := require.New(t)
	backend := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Given a connected session subscribed to presence events
	alice := backend.session(t)
	joined := make(chan event.Envelope, 1)
	alice.On(event.TypeUserJoined, func(e event.Envelope) { joined <- e })

	require.NoError(alice.Connect(ctx))
	require.NoError(alice.Authenticate(ctx, backend.token(t, "alice")))
	require.NoError(alice.JoinProject(ctx, "p1"))

	// When a second collaborator joins the same project
	bob := backend.session(t)
	require.NoError(bob.Connect(ctx))
	require.NoError(bob.Authenticate(ctx, backend.token(t, "bob")))
	require.NoError(bob.JoinProject(ctx, "p1"))

	// Then the first session's handler observes the arrival
	select {
	case e := <-joined:
		require.Equal("bob", e.Payload[event.KeyIdentity])
	case <-ctx.Done():
		t.Fatal("timed out waiting for user_joined")
	}
}

func TestTaskEventsReachSubscribers(t *testing.T) {
	require := require.New(t)
	backend := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := backend.session(t)
	require.NoError(alice.Connect(ctx))
	require.NoError(alice.Authenticate(ctx, backend.token(t, "alice")))
	require.NoError(alice.JoinProject(ctx, "p1"))

	updates := make(chan event.Envelope, 1)
	alice.On(event.TypeTaskUpdated, func(e event.Envelope) { updates <- e })

	// When the session emits a task update, the broadcast echoes back
	// enriched with the sender identity and the room.
	alice.SendTaskUpdate("p1", "t42", map[string]any{"title": "wire the exporter"})

	select {
	case e := <-updates:
		require.Equal("alice", e.Payload[event.KeyIdentity])
		require.Equal("p1", e.Payload[event.KeyProject])
		require.Equal("t42", e.Payload[event.KeyTask])
		require.Equal("wire the exporter", e.Payload["title"])
		require.NotEmpty(e.Payload[event.KeyTimestamp])
	case <-ctx.Done():
		t.Fatal("timed out waiting for task_updated")
	}
}

func TestAuthenticateRejectsBadToken(t *testing.T) {
	require := require.New(t)
	backend := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := backend.session(t)
	require.NoError(session.Connect(ctx))

	err := session.Authenticate(ctx, "not.a.token")
	require.ErrorIs(err, errors.ErrInvalidToken)

	// The transport survives a failed authentication.
	require.NoError(session.Authenticate(ctx, backend.token(t, "alice")))
}

func TestJoinWithoutAuthenticationFails(t *testing.T) {
	require := require.New(t)
	backend := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := backend.session(t)
	require.NoError(session.Connect(ctx))

	err := session.JoinProject(ctx, "p1")
	require.Error(err)
	require.Contains(err.Error(), "Not authenticated")
}

func TestConnectRetriesThenFails(t *testing.T) {
	require := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	session := NewSession(log, Config{
		URL:        "ws://127.0.0.1:1", // nothing listens here
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	})

	start := time.Now()
	err := session.Connect(context.Background())
	require.Error(err)
	require.Contains(err.Error(), "after 3 attempts")
	require.GreaterOrEqual(time.Since(start), 20*time.Millisecond)
}

func TestConnectRetryDoesNotBlockOtherCalls(t *testing.T) {
	require := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	session := NewSession(log, Config{
		URL:        "ws://127.0.0.1:1", // nothing listens here
		MaxRetries: 10,
		RetryDelay: 200 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = session.Connect(ctx) }()

	// Let Connect enter its retry backoff
	time.Sleep(50 * time.Millisecond)

	// Emits and Disconnect must return promptly while Connect retries
	done := make(chan struct{})
	var joinErr error
	go func() {
		session.SendActivity("p1", "typing")
		joinErr = session.JoinProject(ctx, "p1")
		session.Disconnect()
		close(done)
	}()

	select {
	case <-done:
		require.ErrorIs(joinErr, errors.ErrSinkClosed)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("session calls stalled behind the connect retry loop")
	}
}

func TestHandlerSetSemantics(t *testing.T) {
	require := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	session := NewSession(log, Config{URL: "ws://unused"})

	var calls atomic.Int32
	handler := func(event.Envelope) { calls.Add(1) }

	// Registering the same reference twice keeps a single entry.
	session.On(event.TypeNotification, handler)
	session.On(event.TypeNotification, handler)
	session.dispatch(event.Envelope{Type: event.TypeNotification})
	require.Equal(int32(1), calls.Load())

	session.Off(event.TypeNotification, handler)
	session.dispatch(event.Envelope{Type: event.TypeNotification})
	require.Equal(int32(1), calls.Load())
}

func TestHandlerPanicIsContained(t *testing.T) {
	require := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	session := NewSession(log, Config{URL: "ws://unused"})

	var survived atomic.Bool
	session.On(event.TypeNotification, func(event.Envelope) { panic("boom") })
	session.On(event.TypeUserLeft, func(event.Envelope) { survived.Store(true) })

	require.NotPanics(func() {
		session.dispatch(event.Envelope{Type: event.TypeNotification})
	})
	session.dispatch(event.Envelope{Type: event.TypeUserLeft})
	require.True(survived.Load())
}

func TestDisconnectPreservesHandlers(t *testing.T) {
	require := require.New(t)
	backend := newBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := backend.session(t)
	joined := make(chan event.Envelope, 1)
	session.On(event.TypeUserJoined, func(e event.Envelope) { joined <- e })

	require.NoError(session.Connect(ctx))
	require.NoError(session.Authenticate(ctx, backend.token(t, "alice")))
	session.Disconnect()

	// A fire-and-forget emit on a closed session is a silent no-op,
	// while the acked operations report the closed transport.
	session.SendActivity("p1", "typing")
	require.ErrorIs(session.JoinProject(ctx, "p1"), errors.ErrSinkClosed)

	// Reconnecting reuses the handler registry. Joined rooms are not
	// restored, so the session re-authenticates and re-joins.
	require.NoError(session.Connect(ctx))
	require.NoError(session.Authenticate(ctx, backend.token(t, "alice")))
	require.NoError(session.JoinProject(ctx, "p1"))

	other := backend.session(t)
	require.NoError(other.Connect(ctx))
	require.NoError(other.Authenticate(ctx, backend.token(t, "bob")))
	require.NoError(other.JoinProject(ctx, "p1"))

	select {
	case e := <-joined:
		require.Equal("bob", e.Payload[event.KeyIdentity])
	case <-ctx.Done():
		t.Fatal("timed out waiting for user_joined after reconnect")
	}
}
