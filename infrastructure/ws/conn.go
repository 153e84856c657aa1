// Package ws carries the collaboration protocol over a persistent
// WebSocket connection: one read loop per connection feeding the
// per-connection state machine, one write pump draining a buffered
// outbound queue.
package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"video2tool/domain/event"
	"video2tool/errors"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 64 * 1024
)

// Conn adapts a websocket connection to the contract.EventSink the
// server core delivers through. Send never blocks on a slow peer: a
// full outbound queue rejects the event and the broadcaster counts a
// drop.
type Conn struct {
	log *slog.Logger
	ws  *websocket.Conn
	out chan event.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func NewConn(log *slog.Logger, ws *websocket.Conn, bufferSize int) *Conn {
	return &Conn{
		log:    log,
		ws:     ws,
		out:    make(chan event.Envelope, bufferSize),
		closed: make(chan struct{}),
	}
}

func (c *Conn) Send(e event.Envelope) error {
	select {
	case <-c.closed:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case c.out <- e:
		return nil
	default:
		return errors.ErrSinkFull
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// WritePump owns every write on the connection, pings included. It runs
// until Close is called or a write fails, then tears the transport down
// so the read loop unblocks and triggers cleanup.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.closed:
			return
		case e := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(e); err != nil {
				c.log.Debug("Write failed, closing connection", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
