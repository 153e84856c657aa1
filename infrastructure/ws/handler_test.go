package ws

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"video2tool/auth"
	"video2tool/domain"
	"video2tool/domain/event"
	"video2tool/moderation"
	"video2tool/runtime"
	"video2tool/services"
)

const testSecret = "test_secret_long_enough_for_hs256"

type stack struct {
	server     *httptest.Server
	tokens     *auth.TokenService
	membership *runtime.Membership
	registry   *runtime.Registry
}

func newStack(t *testing.T) stack {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	tokens := auth.NewTokenService(testSecret, time.Hour)
	registry := runtime.NewRegistry()
	membership := runtime.NewMembership()
	broadcaster := runtime.NewBroadcaster(log, registry, membership)
	censor, err := moderation.NewCensor([]string{"badger"}, '*')
	require.NoError(t, err)

	service := services.NewCollabService(log, tokens, registry, membership, broadcaster, censor, 16)
	handler := NewHandler(log, service, nil, 32)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(server.Close)
	return stack{server: server, tokens: tokens, membership: membership, registry: registry}
}

type testClient struct {
	t  *testing.T
	ws *websocket.Conn
}

func (s stack) dial(t *testing.T) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return &testClient{t: t, ws: ws}
}

// authenticated dials, authenticates as the given identity, and drains
// the authenticated reply.
func (s stack) authenticated(t *testing.T, id domain.Identity) *testClient {
	t.Helper()
	token, err := s.tokens.Generate(id)
	require.NoError(t, err)

	client := s.dial(t)
	client.send(event.Envelope{
		Type:    event.TypeAuthenticate,
		Payload: map[string]any{event.KeyToken: token},
	})
	require.Equal(t, event.TypeAuthenticated, client.recv().Type)
	return client
}

func (c *testClient) send(env event.Envelope) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteJSON(env))
}

func (c *testClient) recv() event.Envelope {
	c.t.Helper()
	var env event.Envelope
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(c.t, c.ws.ReadJSON(&env))
	return env
}

func (c *testClient) join(project string, ackID uint64) event.Envelope {
	c.t.Helper()
	c.send(event.Envelope{
		Type:    event.TypeJoinProject,
		Ack:     &ackID,
		Payload: map[string]any{event.KeyProject: project},
	})
	ack := c.recv()
	require.Equal(c.t, event.TypeAck, ack.Type)
	require.Equal(c.t, float64(ackID), ack.Payload[event.KeyID])
	return ack
}

func TestCollaborationScenario(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// u1 connects, authenticates, and joins p1
	u1 := s.authenticated(t, "u1")
	ack := u1.join("p1", 1)
	req.Equal(true, ack.Payload[event.KeySuccess])

	// u2 authenticates and joins p1: u1 is told, u2 is not
	u2 := s.authenticated(t, "u2")
	ack = u2.join("p1", 1)
	req.Equal(true, ack.Payload[event.KeySuccess])

	joined := u1.recv()
	req.Equal(event.TypeUserJoined, joined.Type)
	req.Equal("u2", joined.Payload[event.KeyIdentity])
	req.NotEmpty(joined.Payload[event.KeyTimestamp])

	// u2 updates a task: the whole room receives the enriched event
	u2.send(event.Envelope{
		Type: event.TypeTaskUpdated,
		Payload: map[string]any{
			event.KeyTask:    "t1",
			event.KeyProject: "p1",
		},
	})
	for _, client := range []*testClient{u1, u2} {
		updated := client.recv()
		req.Equal(event.TypeTaskUpdated, updated.Type)
		req.Equal("t1", updated.Payload[event.KeyTask])
		req.Equal("p1", updated.Payload[event.KeyProject])
		req.Equal("u2", updated.Payload[event.KeyIdentity])
		req.NotEmpty(updated.Payload[event.KeyTimestamp])
	}

	// u2's transport drops: u1 observes the departure
	req.NoError(u2.ws.Close())
	left := u1.recv()
	req.Equal(event.TypeUserLeft, left.Type)
	req.Equal("u2", left.Payload[event.KeyIdentity])
}

func TestJoinWithoutAuthenticationIsRejected(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// A connection that never authenticates tries to join
	client := s.dial(t)
	ack := client.join("p1", 7)

	// Then it gets an explicit error and no membership
	req.Equal("Not authenticated", ack.Payload[event.KeyError])
	req.Nil(ack.Payload[event.KeySuccess])
	req.Empty(s.membership.MembersOf("p1"))
}

func TestAuthenticationFailureAllowsRetry(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	client := s.dial(t)

	// An invalid credential is rejected but the connection survives
	client.send(event.Envelope{
		Type:    event.TypeAuthenticate,
		Payload: map[string]any{event.KeyToken: "garbage"},
	})
	reply := client.recv()
	req.Equal(event.TypeAuthenticationError, reply.Type)
	req.NotEmpty(reply.Payload[event.KeyMessage])

	// A retry with a valid credential succeeds on the same connection
	token, err := s.tokens.Generate("u1")
	req.NoError(err)
	client.send(event.Envelope{
		Type:    event.TypeAuthenticate,
		Payload: map[string]any{event.KeyToken: token},
	})
	req.Equal(event.TypeAuthenticated, client.recv().Type)
}

func TestReauthenticationIsRejected(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// Given an authenticated connection already joined to a room
	u1 := s.authenticated(t, "u1")
	u1.join("p1", 1)

	// When the same connection authenticates again as another identity
	token, err := s.tokens.Generate("u2")
	req.NoError(err)
	u1.send(event.Envelope{
		Type:    event.TypeAuthenticate,
		Payload: map[string]any{event.KeyToken: token},
	})

	// Then the attempt is refused and the original identity stays attached
	reply := u1.recv()
	req.Equal(event.TypeAuthenticationError, reply.Type)
	req.NotEmpty(reply.Payload[event.KeyMessage])

	_, ok := s.registry.Lookup("u1")
	req.True(ok)
	_, ok = s.registry.Lookup("u2")
	req.False(ok)

	// Disconnect still cleans up the original identity and its rooms
	req.NoError(u1.ws.Close())
	req.Eventually(func() bool {
		_, ok := s.registry.Lookup("u1")
		return !ok && len(s.membership.MembersOf("p1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestActivityIsCensoredAndNotEchoed(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	u1 := s.authenticated(t, "u1")
	u1.join("p1", 1)
	u2 := s.authenticated(t, "u2")
	u2.join("p1", 1)
	u1.recv() // drain u2's user_joined

	u2.send(event.Envelope{
		Type: event.TypeUserActivity,
		Payload: map[string]any{
			event.KeyProject:  "p1",
			event.KeyActivity: "renaming badger board",
		},
	})

	activity := u1.recv()
	req.Equal(event.TypeUserActivity, activity.Type)
	req.Equal("u2", activity.Payload[event.KeyIdentity])
	req.Equal("renaming ****** board", activity.Payload[event.KeyActivity])
}

func TestFireAndForgetIgnoredWithoutAuthentication(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	u1 := s.authenticated(t, "u1")
	u1.join("p1", 1)

	// An anonymous connection spams room events
	anon := s.dial(t)
	anon.send(event.Envelope{
		Type:    event.TypeTaskUpdated,
		Payload: map[string]any{event.KeyProject: "p1", event.KeyTask: "t1"},
	})
	anon.send(event.Envelope{
		Type:    event.TypeLeaveProject,
		Payload: map[string]any{event.KeyProject: "p1"},
	})

	// The room member never hears about it
	req.NoError(u1.ws.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	var env event.Envelope
	req.Error(u1.ws.ReadJSON(&env))
	req.Equal([]domain.Identity{"u1"}, s.membership.MembersOf("p1"))
}

func TestDisconnectUnregistersIdentity(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	u1 := s.authenticated(t, "u1")
	u1.join("p1", 1)

	req.NoError(u1.ws.Close())

	// Cleanup is asynchronous from the test's point of view
	req.Eventually(func() bool {
		_, ok := s.registry.Lookup("u1")
		return !ok && len(s.membership.MembersOf("p1")) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
