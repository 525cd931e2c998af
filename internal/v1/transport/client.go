// Package transport implements the broadcast router: one session per
// WebSocket connection, JSON event dispatch, room-scoped fan-out with
// ownership checks, and the per-session cursor throttle.
package transport

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/protocol"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// wsConnection defines the interface for WebSocket connection operations.
// In production this is *websocket.Conn; tests substitute mocks.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Client is one connected session. Its ID is the transport-assigned session
// identifier, which doubles as the user id once the session joins a room,
// making the author of an event unspoofable at this layer.
type Client struct {
	conn wsConnection
	hub  *Hub
	ID   types.ClientIDType

	send chan []byte // Buffered channel for outgoing messages

	mu       sync.RWMutex
	closed   bool
	roomID   types.RoomIDType // current room, empty until join
	username string

	closeOnce sync.Once
	throttle  *cursorThrottle
}

// Room returns the session's current room id ("" when unjoined).
func (c *Client) Room() types.RoomIDType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) setRoom(roomID types.RoomIDType, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.username = username
}

// Disconnect closes the outgoing channel, which drains the writePump and
// closes the underlying connection.
func (c *Client) Disconnect() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)
	})
}

// readPump continuously processes incoming frames until the connection
// drops, then runs disconnect cleanup.
func (c *Client) readPump() {
	defer func() {
		c.hub.HandleDisconnect(c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		env, err := protocol.Decode(data)
		if err != nil {
			logging.Warn(context.Background(), "Failed to decode envelope",
				zap.String("sessionId", string(c.ID)), zap.Error(err))
			continue
		}

		c.hub.Dispatch(context.Background(), c, env)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	writeWait := 10 * time.Second

	for message := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "error writing message", zap.Error(err))
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// sendEvent marshals and queues an event for this session. A full buffer
// drops the message rather than blocking the room.
func (c *Client) sendEvent(event string, payload any) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to encode event",
			zap.String("event", event), zap.Error(err))
		return
	}
	c.sendRaw(data)
}

func (c *Client) sendRaw(data []byte) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Recovered from send to closed client",
				zap.String("sessionId", string(c.ID)), zap.Any("panic", r))
		}
	}()

	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "Client send channel full",
			zap.String("sessionId", string(c.ID)))
	}
}

// sendError reports an application-level validation failure to the origin.
// The server never disconnects a client for misbehaving payloads.
func (c *Client) sendError(message string) {
	c.sendEvent(protocol.EventError, message)
}
