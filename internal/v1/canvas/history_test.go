package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

func TestUndo_EmptyHistoryReturnsNil(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	assert.Nil(t, room.Undo())
}

func TestRedo_EmptyStackReturnsNil(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	assert.Nil(t, room.Redo())
}

func TestUndoRedo_DrawRoundTrip(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.NoError(t, room.AddStroke(testStroke("s1", "u1", types.ToolBrush)))

	op := room.Undo()
	require.NotNil(t, op)
	assert.Equal(t, types.OperationDraw, op.Type)
	assert.Equal(t, "s1", op.StrokeID)
	assert.Equal(t, 0, room.StrokeCount())
	assert.Equal(t, types.HistoryState{OperationCount: 0, UndoneCount: 1}, room.HistoryState())

	op = room.Redo()
	require.NotNil(t, op)
	assert.Equal(t, "s1", op.StrokeID)
	assert.Equal(t, 1, room.StrokeCount())
	assert.Equal(t, types.HistoryState{OperationCount: 1, UndoneCount: 0}, room.HistoryState())
}

func TestUndo_IsGlobalAcrossUsers(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.NoError(t, room.AddStroke(testStroke("s1", "alice", types.ToolBrush)))
	require.NoError(t, room.AddStroke(testStroke("s2", "bob", types.ToolBrush)))

	// Alice undoes: the most recent operation is Bob's, and it goes.
	op := room.Undo()
	require.NotNil(t, op)
	assert.Equal(t, types.ClientIDType("bob"), op.UserID)
	assert.Equal(t, 1, room.StrokeCount())
	_, ok := room.StrokeOwner("s1")
	assert.True(t, ok)
}

func TestUndoRedo_LIFOOrder(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, room.AddStroke(testStroke(id, "u1", types.ToolBrush)))
	}

	assert.Equal(t, "s3", room.Undo().StrokeID)
	assert.Equal(t, "s2", room.Undo().StrokeID)
	assert.Equal(t, "s2", room.Redo().StrokeID)
	assert.Equal(t, "s3", room.Redo().StrokeID)
	assert.Equal(t, 3, room.StrokeCount())
}

func TestUndo_EraseRestoresStroke(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.NoError(t, room.AddStroke(testStroke("e1", "u1", types.ToolEraser)))
	require.Equal(t, 1, room.StrokeCount())

	// Undo of an erase puts the eraser stroke back on the canvas; redo
	// removes it again.
	op := room.Undo()
	require.NotNil(t, op)
	assert.Equal(t, types.OperationErase, op.Type)
	assert.Equal(t, 1, room.StrokeCount())

	op = room.Redo()
	require.NotNil(t, op)
	assert.Equal(t, 0, room.StrokeCount())
}

func TestUndo_ReturnedOperationIsACopy(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.NoError(t, room.AddStroke(testStroke("s1", "u1", types.ToolBrush)))

	op := room.Undo()
	require.NotNil(t, op)
	op.Stroke.Points[0].X = 999

	redone := room.Redo()
	require.NotNil(t, redone)
	assert.Equal(t, 1.0, redone.Stroke.Points[0].X)
}
