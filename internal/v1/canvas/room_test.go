package canvas

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// recordingSink captures Enqueue calls for assertions.
type recordingSink struct {
	mu    sync.Mutex
	calls []*types.RoomSnapshot
}

func (s *recordingSink) Enqueue(roomID types.RoomIDType, snap *types.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, snap)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func testStroke(id string, user types.ClientIDType, tool types.ToolType) *types.Stroke {
	return &types.Stroke{
		ID:     id,
		UserID: user,
		Tool:   tool,
		Color:  "#FF6B6B",
		Width:  4,
		Points: []types.Point{{X: 1, Y: 2}},
	}
}

func TestAddUser_AssignsPaletteColorsRoundRobin(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)

	seen := make([]string, 0, len(Palette)+1)
	for i := 0; i <= len(Palette); i++ {
		u := room.AddUser(types.ClientIDType(string(rune('a'+i))), "user")
		seen = append(seen, u.Color)
	}

	for i, color := range seen {
		assert.Equal(t, Palette[i%len(Palette)], color)
	}
	// The palette wraps after exhaustion.
	assert.Equal(t, seen[0], seen[len(Palette)])
}

func TestAddUser_ColorIndexSurvivesLeaves(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)

	room.AddUser("a", "alice")
	room.AddUser("b", "bob")
	room.RemoveUser("a")

	// Index keeps advancing; it is not recycled from departed users.
	u := room.AddUser("c", "carol")
	assert.Equal(t, Palette[2], u.Color)
}

func TestRemoveUser_FiresOnEmptyForLastUserOnly(t *testing.T) {
	fired := make(chan types.RoomIDType, 2)
	room := NewRoom("ABC123", func(id types.RoomIDType) { fired <- id }, nil)

	room.AddUser("a", "alice")
	room.AddUser("b", "bob")

	room.RemoveUser("a")
	select {
	case <-fired:
		t.Fatal("onEmpty fired while the room still had a user")
	case <-time.After(20 * time.Millisecond):
	}

	room.RemoveUser("b")
	select {
	case id := <-fired:
		assert.Equal(t, types.RoomIDType("ABC123"), id)
	case <-time.After(time.Second):
		t.Fatal("onEmpty did not fire for the last user")
	}
}

func TestRemoveUser_UnknownIsNoOp(t *testing.T) {
	room := NewRoom("ABC123", func(types.RoomIDType) {
		t.Fatal("onEmpty must not fire for unknown users")
	}, nil)
	assert.False(t, room.RemoveUser("ghost"))
}

func TestUpdateCursor_UnknownUserIsNoOp(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	// Cursor frames race with leave; this must not panic or create users.
	room.UpdateCursor("ghost", &types.Point{X: 1, Y: 1}, true)
	assert.Equal(t, 0, room.UserCount())
}

func TestUpdateCursor_StoresTelemetry(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	room.AddUser("a", "alice")

	room.UpdateCursor("a", &types.Point{X: 3, Y: 4}, true)

	users := room.ListUsers()
	require.Len(t, users, 1)
	require.NotNil(t, users[0].CursorPosition)
	assert.Equal(t, 3.0, users[0].CursorPosition.X)
	assert.True(t, users[0].IsDrawing)
}

func TestListUsers_ReturnsCopies(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	room.AddUser("a", "alice")

	users := room.ListUsers()
	users[0].Username = "mallory"

	assert.Equal(t, "alice", room.ListUsers()[0].Username)
}

func TestHydrate_RestoresStateAndMarksRoom(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.False(t, room.RestoredFromDisk())

	stroke := testStroke("s1", "u1", types.ToolBrush)
	room.Hydrate(&types.RoomSnapshot{
		Strokes: []*types.Stroke{stroke},
		OperationHistory: []*types.Operation{
			{Type: types.OperationDraw, StrokeID: "s1", Stroke: stroke, UserID: "u1"},
		},
	})

	assert.True(t, room.RestoredFromDisk())
	assert.Equal(t, 1, room.StrokeCount())
	assert.Equal(t, types.HistoryState{OperationCount: 1, UndoneCount: 0}, room.HistoryState())

	// Undo must work on restored history.
	op := room.Undo()
	require.NotNil(t, op)
	assert.Equal(t, 0, room.StrokeCount())
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	room := NewRoom("ABC123", nil, nil)
	require.NoError(t, room.AddStroke(testStroke("s1", "u1", types.ToolBrush)))

	snap := room.Snapshot()
	snap.Strokes[0].Points[0].X = 999

	assert.Equal(t, 1.0, room.GetStroke("s1").Points[0].X)
}

func TestMutations_ReachTheSnapshotSink(t *testing.T) {
	sink := &recordingSink{}
	room := NewRoom("ABC123", nil, sink)

	require.NoError(t, room.AddStroke(testStroke("s1", "u1", types.ToolBrush)))
	room.FinalizeStroke("s1")
	room.Undo()
	room.Redo()
	room.Clear()

	assert.Equal(t, 5, sink.count())
}
