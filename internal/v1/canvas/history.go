package canvas

import "github.com/drawdeck/drawdeck/backend/go/internal/v1/types"

// The operation log is a single global stack per room, not per-user: in a
// shared canvas "undo" means "revert the most recent change anyone made".
// Per-user stacks mismatch intent as soon as users draw atop each other.

// Undo reverts the most recent operation and returns a copy of it for
// broadcast, or nil when the history is empty.
func (r *Room) Undo() *types.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.operationHistory)
	if n == 0 {
		return nil
	}
	op := r.operationHistory[n-1]
	r.operationHistory = r.operationHistory[:n-1]
	r.undoneOperations = append(r.undoneOperations, op)

	// Inverse application.
	switch op.Type {
	case types.OperationDraw:
		delete(r.strokes, op.StrokeID)
	case types.OperationErase:
		r.strokes[op.StrokeID] = op.Stroke.Clone()
	}

	r.schedulePersistLocked()
	return op.Clone()
}

// Redo reapplies the most recently undone operation and returns a copy of
// it for broadcast, or nil when the redo stack is empty.
func (r *Room) Redo() *types.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.undoneOperations)
	if n == 0 {
		return nil
	}
	op := r.undoneOperations[n-1]
	r.undoneOperations = r.undoneOperations[:n-1]
	r.operationHistory = append(r.operationHistory, op)

	switch op.Type {
	case types.OperationDraw:
		r.strokes[op.StrokeID] = op.Stroke.Clone()
	case types.OperationErase:
		delete(r.strokes, op.StrokeID)
	}

	r.schedulePersistLocked()
	return op.Clone()
}

// HistoryState returns the undo/redo counters.
func (r *Room) HistoryState() types.HistoryState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.HistoryState{
		OperationCount: len(r.operationHistory),
		UndoneCount:    len(r.undoneOperations),
	}
}
