package transport

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/canvas"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/protocol"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// Dispatch routes one decoded envelope from a session. Authorization policy:
// validation failures answer the origin with an error event, ownership
// violations are dropped with a warning, missing entities are silent no-ops.
// Nothing here ever disconnects the client.
func (h *Hub) Dispatch(ctx context.Context, c *Client, env protocol.Envelope) {
	start := time.Now()
	defer func() {
		metrics.EventProcessingDuration.WithLabelValues(env.Event).Observe(time.Since(start).Seconds())
	}()

	status := "ok"
	switch env.Event {
	case protocol.EventRoomJoin:
		status = h.handleJoin(ctx, c, env.Data)
	case protocol.EventRoomLeave:
		status = h.handleLeave(ctx, c, env.Data)
	case protocol.EventCursorMove:
		status = h.handleCursorMove(c, env.Data)
	case protocol.EventStrokeStart:
		status = h.handleStrokeStart(ctx, c, env.Data)
	case protocol.EventStrokePoint:
		status = h.handleStrokePoint(ctx, c, env.Data)
	case protocol.EventStrokeEnd:
		status = h.handleStrokeEnd(ctx, c, env.Data)
	case protocol.EventCanvasClear:
		status = h.handleCanvasClear(c, env.Data)
	case protocol.EventOperationUndo:
		status = h.handleUndo(c, env.Data)
	case protocol.EventOperationRedo:
		status = h.handleRedo(c, env.Data)
	case protocol.EventPing:
		c.sendEvent(protocol.EventPong, nil)
	default:
		logging.Warn(ctx, "Unknown event received",
			zap.String("event", env.Event), zap.String("sessionId", string(c.ID)))
		status = "unknown"
	}

	metrics.WebsocketEvents.WithLabelValues(env.Event, status).Inc()
}

// currentRoom resolves the session's room iff the event names it correctly.
// Events naming the wrong room (or arriving before a join) are dropped.
func (h *Hub) currentRoom(c *Client, roomID string) *canvas.Room {
	current := c.Room()
	if current == "" || string(current) != roomID {
		return nil
	}
	return h.registry.Get(current)
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, data json.RawMessage) string {
	var payload protocol.JoinPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed join payload.")
		return "error"
	}
	if err := protocol.ValidateRoomCode(payload.RoomID); err != nil {
		c.sendError(protocol.MsgInvalidRoomCode)
		return "error"
	}
	if err := protocol.ValidateUsername(payload.Username); err != nil {
		c.sendError(protocol.MsgInvalidUsername)
		return "error"
	}

	roomID := types.RoomIDType(payload.RoomID)
	room, err := h.registry.GetOrCreate(ctx, roomID)
	if err != nil {
		c.sendError(protocol.MsgInvalidRoomCode)
		return "error"
	}

	if room.UserCount() >= h.maxRoomUsers {
		c.sendError(protocol.MsgRoomFull)
		return "error"
	}

	// Switching rooms leaves the old one first.
	if c.Room() != "" {
		h.leaveRoom(ctx, c)
	}

	user := room.AddUser(c.ID, payload.Username)
	c.setRoom(roomID, payload.Username)
	h.addSession(roomID, c)

	logging.Info(ctx, "User joined room",
		zap.String("room", string(roomID)),
		zap.String("sessionId", string(c.ID)),
		zap.String("username", payload.Username))

	// Handshake back to the origin.
	c.sendEvent(protocol.EventRoomJoined, protocol.RoomJoinedPayload{
		RoomID:   string(roomID),
		UserID:   string(user.ID),
		Username: user.Username,
		Color:    user.Color,
	})
	c.sendEvent(protocol.EventUserList, room.ListUsers())

	strokes := room.Strokes()
	c.sendEvent(protocol.EventCanvasState, protocol.CanvasStatePayload{Strokes: strokes})
	if room.RestoredFromDisk() && len(strokes) > 0 {
		c.sendEvent(protocol.EventCanvasRestored, protocol.CanvasRestoredPayload{StrokeCount: len(strokes)})
	}
	c.sendEvent(protocol.EventHistoryState, room.HistoryState())

	h.emit(roomID, protocol.EventUserJoined, user, c.ID)
	return "ok"
}

func (h *Hub) handleLeave(ctx context.Context, c *Client, data json.RawMessage) string {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		c.sendError("Malformed leave payload.")
		return "error"
	}
	if c.Room() == "" || string(c.Room()) != roomID {
		return "dropped"
	}
	h.leaveRoom(ctx, c)
	return "ok"
}

// leaveRoom removes the session from its current room and notifies peers.
func (h *Hub) leaveRoom(ctx context.Context, c *Client) {
	roomID := c.Room()
	if roomID == "" {
		return
	}

	if room := h.registry.Get(roomID); room != nil {
		room.RemoveUser(c.ID)
	}
	h.removeSession(roomID, c)
	c.setRoom("", "")
	c.throttle.Stop()

	h.emit(roomID, protocol.EventUserLeft, string(c.ID), c.ID)
	logging.Info(ctx, "User left room",
		zap.String("room", string(roomID)), zap.String("sessionId", string(c.ID)))
}

func (h *Hub) handleCursorMove(c *Client, data json.RawMessage) string {
	var payload protocol.CursorMovePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed cursor payload.")
		return "error"
	}
	room := h.currentRoom(c, payload.RoomID)
	if room == nil {
		return "dropped"
	}

	room.UpdateCursor(c.ID, payload.Position, payload.IsDrawing)

	roomID := c.Room()
	update := protocol.CursorUpdatePayload{
		UserID:    string(c.ID),
		Position:  payload.Position,
		IsDrawing: payload.IsDrawing,
	}
	c.throttle.Submit(func() {
		h.emit(roomID, protocol.EventCursorUpdate, update, c.ID)
	})
	return "ok"
}

func (h *Hub) handleStrokeStart(ctx context.Context, c *Client, data json.RawMessage) string {
	var payload protocol.StrokeStartPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed stroke payload.")
		return "error"
	}
	if err := payload.Validate(); err != nil {
		c.sendError("Malformed stroke payload.")
		return "error"
	}
	room := h.currentRoom(c, payload.RoomID)
	if room == nil {
		return "dropped"
	}

	// Ownership: the author must be this session. Spoofed authorship is
	// dropped, never surfaced to peers.
	if payload.Stroke.UserID != c.ID {
		logging.Warn(ctx, "Dropping stroke with spoofed author",
			zap.String("room", payload.RoomID),
			zap.String("sessionId", string(c.ID)),
			zap.String("claimedUserId", string(payload.Stroke.UserID)))
		return "dropped"
	}

	if err := room.AddStroke(payload.Stroke); err != nil {
		logging.Warn(ctx, "Dropping stroke with colliding id",
			zap.String("room", payload.RoomID),
			zap.String("strokeId", payload.Stroke.ID), zap.Error(err))
		return "dropped"
	}

	h.emit(room.ID, protocol.EventStrokeStart, payload, c.ID)
	return "ok"
}

func (h *Hub) handleStrokePoint(ctx context.Context, c *Client, data json.RawMessage) string {
	var payload protocol.StrokePointPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed stroke payload.")
		return "error"
	}
	room := h.currentRoom(c, payload.RoomID)
	if room == nil {
		return "dropped"
	}

	owner, ok := room.StrokeOwner(payload.StrokeID)
	if !ok {
		// The stroke may have been undone while points were in flight.
		return "dropped"
	}
	if owner != c.ID {
		logging.Warn(ctx, "Dropping point for stroke owned by another session",
			zap.String("room", payload.RoomID),
			zap.String("strokeId", payload.StrokeID),
			zap.String("sessionId", string(c.ID)))
		return "dropped"
	}

	room.AppendPoint(payload.StrokeID, payload.Point)
	h.emit(room.ID, protocol.EventStrokePoint, payload, c.ID)
	return "ok"
}

func (h *Hub) handleStrokeEnd(ctx context.Context, c *Client, data json.RawMessage) string {
	var payload protocol.StrokeEndPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("Malformed stroke payload.")
		return "error"
	}
	room := h.currentRoom(c, payload.RoomID)
	if room == nil {
		return "dropped"
	}

	owner, ok := room.StrokeOwner(payload.StrokeID)
	if !ok {
		return "dropped"
	}
	if owner != c.ID {
		logging.Warn(ctx, "Dropping end for stroke owned by another session",
			zap.String("room", payload.RoomID),
			zap.String("strokeId", payload.StrokeID),
			zap.String("sessionId", string(c.ID)))
		return "dropped"
	}

	room.FinalizeStroke(payload.StrokeID)
	h.emit(room.ID, protocol.EventStrokeEnd, payload, c.ID)
	// History counters go to the whole room, origin included, so everyone
	// derives button state from the same authoritative sequence.
	h.emit(room.ID, protocol.EventHistoryState, room.HistoryState(), "")
	return "ok"
}

func (h *Hub) handleCanvasClear(c *Client, data json.RawMessage) string {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		c.sendError("Malformed clear payload.")
		return "error"
	}
	room := h.currentRoom(c, roomID)
	if room == nil {
		return "dropped"
	}

	room.Clear()
	h.emit(room.ID, protocol.EventCanvasClear, nil, "")
	h.emit(room.ID, protocol.EventHistoryState, room.HistoryState(), "")
	return "ok"
}

func (h *Hub) handleUndo(c *Client, data json.RawMessage) string {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		c.sendError("Malformed undo payload.")
		return "error"
	}
	room := h.currentRoom(c, roomID)
	if room == nil {
		return "dropped"
	}

	op := room.Undo()
	if op == nil {
		return "dropped"
	}
	h.emit(room.ID, protocol.EventOperationUndo, op, "")
	h.emit(room.ID, protocol.EventHistoryState, room.HistoryState(), "")
	return "ok"
}

func (h *Hub) handleRedo(c *Client, data json.RawMessage) string {
	var roomID string
	if err := json.Unmarshal(data, &roomID); err != nil {
		c.sendError("Malformed redo payload.")
		return "error"
	}
	room := h.currentRoom(c, roomID)
	if room == nil {
		return "dropped"
	}

	op := room.Redo()
	if op == nil {
		return "dropped"
	}
	h.emit(room.ID, protocol.EventOperationRedo, op, "")
	h.emit(room.ID, protocol.EventHistoryState, room.HistoryState(), "")
	return "ok"
}

// HandleDisconnect runs when a session's read loop ends for any reason.
func (h *Hub) HandleDisconnect(c *Client) {
	if c.Room() != "" {
		h.leaveRoom(context.Background(), c)
	}
	c.throttle.Stop()
	c.Disconnect()
	logging.Info(context.Background(), "Session disconnected",
		zap.String("sessionId", string(c.ID)))
}
