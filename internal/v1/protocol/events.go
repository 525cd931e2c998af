// Package protocol defines the wire contract between clients and the server:
// event names, payload shapes, the JSON envelope, and payload validation.
package protocol

import "encoding/json"

// Client -> server events.
const (
	EventRoomJoin      = "room:join"
	EventRoomLeave     = "room:leave"
	EventCursorMove    = "cursor:move"
	EventStrokeStart   = "stroke:start"
	EventStrokePoint   = "stroke:point"
	EventStrokeEnd     = "stroke:end"
	EventCanvasClear   = "canvas:clear"
	EventOperationUndo = "operation:undo"
	EventOperationRedo = "operation:redo"
	EventPing          = "ping"
)

// Server -> client events.
const (
	EventRoomJoined     = "room:joined"
	EventUserList       = "user:list"
	EventUserJoined     = "user:joined"
	EventUserLeft       = "user:left"
	EventCursorUpdate   = "cursor:update"
	EventCanvasState    = "canvas:state"
	EventCanvasRestored = "canvas:restored"
	EventHistoryState   = "history:state"
	EventError          = "error"
	EventPong           = "pong"
)

// Envelope is the framing for every message on the wire. Data is left raw so
// the router can decode it into the event-specific payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event and its payload into a wire-ready envelope.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a wire frame into an Envelope.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
