// Package ws implements the live channel: one goroutine reads each
// connection's frames in order, a second drains its send buffer, and a
// small state machine gates everything behind the auth handshake.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"directory-chat/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 10240
)

// Conn wraps one websocket connection behind the contract.Conn handle.
// Outbound envelopes go through a buffered channel drained by a single
// writer goroutine, so per-connection delivery order is FIFO.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan domain.Envelope
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
	log       *slog.Logger
}

func newConn(log *slog.Logger, ws *websocket.Conn, bufferSize int) *Conn {
	return &Conn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan domain.Envelope, bufferSize),
		done: make(chan struct{}),
		log:  log,
	}
}

func (c *Conn) ID() string { return c.id }

// Ready reports whether the transport can still accept envelopes.
func (c *Conn) Ready() bool { return !c.closed.Load() }

// Send enqueues an envelope for the writer goroutine without blocking
// the caller. A closed connection or a full buffer loses the envelope;
// durable state is the message log, not this channel.
func (c *Conn) Send(envelope domain.Envelope) error {
	select {
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	default:
	}
	select {
	case c.send <- envelope:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// close marks the handle not ready and tears the transport down. Safe
// to call from both pumps.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump is the single writer for this connection. It drains the
// send buffer and keeps the transport alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case envelope := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(envelope); err != nil {
				c.log.Debug("Write failed, closing connection", "conn_id", c.id, "error", err)
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

// readFrame blocks for the next inbound frame, honoring the pong-based
// read deadline configured in configureRead.
func (c *Conn) readFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *Conn) configureRead() {
	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}
