package protocol

import (
	"errors"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// --- Client -> Server Payloads ---

// JoinPayload is the body of room:join.
type JoinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

// CursorMovePayload is the body of cursor:move. Position is nil when the
// cursor leaves the canvas.
type CursorMovePayload struct {
	RoomID    string       `json:"roomId"`
	Position  *types.Point `json:"position"`
	IsDrawing bool         `json:"isDrawing"`
}

// StrokeStartPayload is the body of stroke:start.
type StrokeStartPayload struct {
	Stroke *types.Stroke `json:"stroke"`
	RoomID string        `json:"roomId"`
}

// Validate checks the structural invariants of a new stroke.
func (p *StrokeStartPayload) Validate() error {
	if p.Stroke == nil {
		return errors.New("stroke is required")
	}
	if p.Stroke.ID == "" {
		return errors.New("stroke id is required")
	}
	if p.Stroke.Width <= 0 {
		return errors.New("stroke width must be positive")
	}
	switch p.Stroke.Tool {
	case types.ToolBrush, types.ToolEraser, types.ToolRectangle,
		types.ToolCircle, types.ToolLine, types.ToolText:
	default:
		return errors.New("unknown tool")
	}
	return nil
}

// StrokePointPayload is the body of stroke:point.
type StrokePointPayload struct {
	StrokeID string      `json:"strokeId"`
	Point    types.Point `json:"point"`
	RoomID   string      `json:"roomId"`
}

// StrokeEndPayload is the body of stroke:end.
type StrokeEndPayload struct {
	StrokeID string `json:"strokeId"`
	RoomID   string `json:"roomId"`
}

// --- Server -> Client Payloads ---

// RoomJoinedPayload confirms a join to the originating session.
type RoomJoinedPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Color    string `json:"color"`
}

// CursorUpdatePayload fans a peer's cursor out to the room.
type CursorUpdatePayload struct {
	UserID    string       `json:"userId"`
	Position  *types.Point `json:"position"`
	IsDrawing bool         `json:"isDrawing"`
}

// CanvasStatePayload carries the full stroke snapshot on join.
type CanvasStatePayload struct {
	Strokes []*types.Stroke `json:"strokes"`
}

// CanvasRestoredPayload hints that the room was recovered from disk.
type CanvasRestoredPayload struct {
	StrokeCount int `json:"strokeCount"`
}
