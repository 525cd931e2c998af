// Package canvas implements the per-room state machine: participants,
// strokes, the global operation log with undo/redo, and snapshot capture
// for persistence.
//
// Concurrency contract: every mutator takes the room mutex, so there is one
// mutator at a time per room. Different rooms proceed in parallel. Reads
// return copies so callers never alias guarded state.
package canvas

import (
	"sync"
	"time"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// SnapshotSink receives fire-and-forget persistence requests. Enqueue must
// never block: mutators call it while holding the room mutex.
type SnapshotSink interface {
	Enqueue(roomID types.RoomIDType, snap *types.RoomSnapshot)
}

// Room is one collaborative canvas. All state behind mu.
type Room struct {
	ID types.RoomIDType

	mu               sync.RWMutex
	users            map[types.ClientIDType]*types.User
	strokes          map[string]*types.Stroke
	operationHistory []*types.Operation
	undoneOperations []*types.Operation
	userColorIndex   int
	restoredFromDisk bool

	onEmpty func(types.RoomIDType)
	sink    SnapshotSink
}

// NewRoom creates an empty room. onEmpty is invoked (on its own goroutine)
// whenever the last user leaves; the sink receives async snapshot writes and
// may be nil in tests.
func NewRoom(id types.RoomIDType, onEmpty func(types.RoomIDType), sink SnapshotSink) *Room {
	return &Room{
		ID:      id,
		users:   make(map[types.ClientIDType]*types.User),
		strokes: make(map[string]*types.Stroke),
		onEmpty: onEmpty,
		sink:    sink,
	}
}

// Hydrate loads a persisted snapshot into a freshly constructed room and
// marks it as restored. It must be called before the room is shared.
func (r *Room) Hydrate(snap *types.RoomSnapshot) {
	if snap == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range snap.Strokes {
		r.strokes[s.ID] = s.Clone()
	}
	r.operationHistory = make([]*types.Operation, 0, len(snap.OperationHistory))
	for _, op := range snap.OperationHistory {
		r.operationHistory = append(r.operationHistory, op.Clone())
	}
	r.undoneOperations = make([]*types.Operation, 0, len(snap.UndoneOperations))
	for _, op := range snap.UndoneOperations {
		r.undoneOperations = append(r.undoneOperations, op.Clone())
	}
	r.restoredFromDisk = true
}

// RestoredFromDisk reports whether this room was loaded from persistence.
func (r *Room) RestoredFromDisk() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restoredFromDisk
}

// --- User operations ---

// AddUser registers a participant and assigns the next palette color.
func (r *Room) AddUser(sessionID types.ClientIDType, username string) *types.User {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := &types.User{
		ID:       sessionID,
		Username: username,
		Color:    Palette[r.userColorIndex%len(Palette)],
	}
	r.userColorIndex++
	r.users[sessionID] = user

	metrics.RoomParticipants.WithLabelValues(string(r.ID)).Set(float64(len(r.users)))

	out := *user
	return &out
}

// RemoveUser deletes a participant. When the room becomes empty the onEmpty
// callback fires so the registry can schedule cleanup.
func (r *Room) RemoveUser(sessionID types.ClientIDType) bool {
	r.mu.Lock()
	if _, ok := r.users[sessionID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.users, sessionID)
	empty := len(r.users) == 0

	if empty {
		metrics.RoomParticipants.DeleteLabelValues(string(r.ID))
	} else {
		metrics.RoomParticipants.WithLabelValues(string(r.ID)).Set(float64(len(r.users)))
	}
	r.mu.Unlock()

	if empty && r.onEmpty != nil {
		go r.onEmpty(r.ID)
	}
	return true
}

// UpdateCursor writes a participant's cursor telemetry. Unknown users are a
// no-op: the cursor stream races with join/leave by design.
func (r *Room) UpdateCursor(sessionID types.ClientIDType, position *types.Point, isDrawing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[sessionID]
	if !ok {
		return
	}
	user.CursorPosition = position
	user.IsDrawing = isDrawing
}

// ListUsers returns a snapshot of the current participants.
func (r *Room) ListUsers() []*types.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.User, 0, len(r.users))
	for _, u := range r.users {
		copied := *u
		out = append(out, &copied)
	}
	return out
}

// HasUser reports membership of a session id.
func (r *Room) HasUser(sessionID types.ClientIDType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[sessionID]
	return ok
}

// UserCount returns the number of joined participants.
func (r *Room) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// --- Snapshot capture ---

// Snapshot returns a deep copy of the persistable room state.
func (r *Room) Snapshot() *types.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// snapshotLocked deep-copies state. Caller must hold r.mu.
func (r *Room) snapshotLocked() *types.RoomSnapshot {
	snap := &types.RoomSnapshot{
		Strokes:          make([]*types.Stroke, 0, len(r.strokes)),
		OperationHistory: make([]*types.Operation, 0, len(r.operationHistory)),
		UndoneOperations: make([]*types.Operation, 0, len(r.undoneOperations)),
	}
	for _, s := range r.strokes {
		snap.Strokes = append(snap.Strokes, s.Clone())
	}
	for _, op := range r.operationHistory {
		snap.OperationHistory = append(snap.OperationHistory, op.Clone())
	}
	for _, op := range r.undoneOperations {
		snap.UndoneOperations = append(snap.UndoneOperations, op.Clone())
	}
	return snap
}

// schedulePersistLocked hands the current state to the snapshot sink.
// Caller must hold r.mu; Enqueue is non-blocking.
func (r *Room) schedulePersistLocked() {
	if r.sink == nil {
		return
	}
	r.sink.Enqueue(r.ID, r.snapshotLocked())
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
