// Package types holds the shared domain types for the collaborative canvas.
// Keeping them in one place breaks import cycles between the canvas state
// machine, the registry, and the transport layer.
package types

import "errors"

// --- Core Domain Types ---

// RoomIDType is the 6-character room code identifying a canvas room.
type RoomIDType string

// ClientIDType is the per-connection session identifier assigned by the transport.
type ClientIDType string

// ToolType identifies the drawing tool that produced a stroke.
type ToolType string

// Known tools. The server treats the list as closed for validation but is
// otherwise agnostic about rendering semantics.
const (
	ToolBrush     ToolType = "brush"
	ToolEraser    ToolType = "eraser"
	ToolRectangle ToolType = "rectangle"
	ToolCircle    ToolType = "circle"
	ToolLine      ToolType = "line"
	ToolText      ToolType = "text"
)

// OperationType classifies an entry in the room's operation log.
type OperationType string

const (
	OperationDraw  OperationType = "draw"
	OperationErase OperationType = "erase"
)

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is the atomic drawing primitive. Points only ever grow until the
// stroke is finalized; after that the stroke is immutable.
type Stroke struct {
	ID        string       `json:"id"`
	UserID    ClientIDType `json:"userId"`
	Tool      ToolType     `json:"tool"`
	Color     string       `json:"color"`
	Width     float64      `json:"width"`
	Points    []Point      `json:"points"`
	Timestamp int64        `json:"timestamp"`
	Text      string       `json:"text,omitempty"`
}

// Clone returns a deep copy of the stroke. Operation log entries hold clones
// so later in-place appends cannot corrupt history.
func (s *Stroke) Clone() *Stroke {
	if s == nil {
		return nil
	}
	out := *s
	out.Points = make([]Point, len(s.Points))
	copy(out.Points, s.Points)
	return &out
}

// User is one participant of a room. ID equals the transport session id.
type User struct {
	ID             ClientIDType `json:"id"`
	Username       string       `json:"username"`
	Color          string       `json:"color"`
	CursorPosition *Point       `json:"cursorPosition"`
	IsDrawing      bool         `json:"isDrawing"`
}

// Operation is an append-only log entry describing a completed mutation.
// The embedded Stroke is a deep copy captured at operation completion so
// undo of an erase (and redo of a draw) can restore it faithfully.
type Operation struct {
	Type      OperationType `json:"type"`
	StrokeID  string        `json:"strokeId"`
	Stroke    *Stroke       `json:"stroke"`
	UserID    ClientIDType  `json:"userId"`
	Timestamp int64         `json:"timestamp"`
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}
	out := *o
	out.Stroke = o.Stroke.Clone()
	return &out
}

// HistoryState carries the undo/redo counters clients use to drive
// button enablement.
type HistoryState struct {
	OperationCount int `json:"operationCount"`
	UndoneCount    int `json:"undoneCount"`
}

// RoomSnapshot is the serializable state of a room, as handed to the
// persistence layer and restored on cold miss.
type RoomSnapshot struct {
	Strokes          []*Stroke    `json:"strokes"`
	OperationHistory []*Operation `json:"operationHistory"`
	UndoneOperations []*Operation `json:"undoneOperations"`
}

// --- Sentinel Errors ---

var (
	// ErrInvalidRoomCode is returned for room codes not matching ^[A-Z0-9]{6}$.
	ErrInvalidRoomCode = errors.New("invalid room code")
	// ErrInvalidUsername is returned for usernames outside 2-20 characters.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrStrokeExists is returned when a stroke id collides within a room.
	ErrStrokeExists = errors.New("stroke id already exists")
	// ErrSnapshotSchema is returned when a persisted snapshot has an
	// unsupported schema version.
	ErrSnapshotSchema = errors.New("unsupported snapshot schema version")
)
