package canvas

import (
	"context"

	"go.uber.org/zap"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// AddStroke stores a new stroke and logs the corresponding operation
// (erase for the eraser tool, draw for everything else). Completing a new
// operation invalidates the redo stack. The caller has already verified
// ownership; collisions on the client-proposed id are rejected.
func (r *Room) AddStroke(stroke *types.Stroke) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.strokes[stroke.ID]; exists {
		return types.ErrStrokeExists
	}

	stored := stroke.Clone()
	r.strokes[stored.ID] = stored

	opType := types.OperationDraw
	if stored.Tool == types.ToolEraser {
		opType = types.OperationErase
	}
	r.operationHistory = append(r.operationHistory, &types.Operation{
		Type:      opType,
		StrokeID:  stored.ID,
		Stroke:    stored.Clone(),
		UserID:    stored.UserID,
		Timestamp: nowMillis(),
	})
	r.undoneOperations = nil

	r.schedulePersistLocked()
	return nil
}

// AppendPoint grows an in-progress stroke. A missing stroke is a silent
// no-op: it may have been undone while points were still in flight.
// Point streams are not persisted; only stroke:end is.
func (r *Room) AppendPoint(strokeID string, p types.Point) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stroke, ok := r.strokes[strokeID]
	if !ok {
		return false
	}
	stroke.Points = append(stroke.Points, p)
	return true
}

// FinalizeStroke seals a stroke and rewrites its operation's embedded
// snapshot to the final points array, so undo can restore it faithfully.
func (r *Room) FinalizeStroke(strokeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	stroke, ok := r.strokes[strokeID]
	if !ok {
		return false
	}

	// Latest operation referencing this stroke gets the final snapshot.
	for i := len(r.operationHistory) - 1; i >= 0; i-- {
		if r.operationHistory[i].StrokeID == strokeID {
			r.operationHistory[i].Stroke = stroke.Clone()
			break
		}
	}

	r.schedulePersistLocked()
	return true
}

// StrokeOwner returns the author of a stroke, if it exists.
func (r *Room) StrokeOwner(strokeID string) (types.ClientIDType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stroke, ok := r.strokes[strokeID]
	if !ok {
		return "", false
	}
	return stroke.UserID, true
}

// GetStroke returns a copy of a stroke, or nil.
func (r *Room) GetStroke(strokeID string) *types.Stroke {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strokes[strokeID].Clone()
}

// Strokes returns a snapshot of all strokes for the join handshake. Render
// order on clients is driven by stroke timestamps, so map order is fine.
func (r *Room) Strokes() []*types.Stroke {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*types.Stroke, 0, len(r.strokes))
	for _, s := range r.strokes {
		out = append(out, s.Clone())
	}
	return out
}

// StrokeCount returns the number of live strokes.
func (r *Room) StrokeCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strokes)
}

// Clear empties the canvas and both history stacks. Clear is destructive
// and not undoable.
func (r *Room) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cleared := len(r.strokes)
	r.strokes = make(map[string]*types.Stroke)
	r.operationHistory = nil
	r.undoneOperations = nil

	logging.Info(context.Background(), "Canvas cleared",
		zap.String("room", string(r.ID)), zap.Int("strokes", cleared))
	r.schedulePersistLocked()
}
