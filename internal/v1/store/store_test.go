package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

func testSnapshot(strokeIDs ...string) *types.RoomSnapshot {
	snap := &types.RoomSnapshot{}
	for _, id := range strokeIDs {
		stroke := &types.Stroke{
			ID:     id,
			UserID: "u1",
			Tool:   types.ToolBrush,
			Color:  "#FF6B6B",
			Width:  4,
			Points: []types.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		}
		snap.Strokes = append(snap.Strokes, stroke)
		snap.OperationHistory = append(snap.OperationHistory, &types.Operation{
			Type:     types.OperationDraw,
			StrokeID: id,
			Stroke:   stroke.Clone(),
			UserID:   "u1",
		})
	}
	return snap
}

func TestSaveNowLoad_RoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap := testSnapshot("s1", "s2")
	snap.UndoneOperations = []*types.Operation{
		{Type: types.OperationDraw, StrokeID: "s3", Stroke: snap.Strokes[0], UserID: "u1"},
	}
	require.NoError(t, s.SaveNow("ABC123", snap))

	loaded, err := s.Load("ABC123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Strokes, 2)
	assert.Len(t, loaded.OperationHistory, 2)
	assert.Len(t, loaded.UndoneOperations, 1)
	assert.Equal(t, snap.Strokes[0].Points, loaded.Strokes[0].Points)
}

func TestLoad_MissingFileReturnsNilNil(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	snap, err := s.Load("ABC123")
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestLoad_CorruptFileReturnsError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ABC123.json"), []byte("{not json"), 0o644))

	_, err = s.Load("ABC123")
	assert.Error(t, err)
}

func TestLoad_SchemaMismatchReturnsError(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	file := snapshotFile{Version: SchemaVersion + 1, RoomID: "ABC123"}
	data, err := json.Marshal(&file)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ABC123.json"), data, 0o644))

	_, err = s.Load("ABC123")
	assert.ErrorIs(t, err, types.ErrSnapshotSchema)
}

func TestSaveNow_WritesSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveNow("ABC123", testSnapshot("s1")))

	data, err := os.ReadFile(filepath.Join(dir, "ABC123.json"))
	require.NoError(t, err)
	var file snapshotFile
	require.NoError(t, json.Unmarshal(data, &file))
	assert.Equal(t, SchemaVersion, file.Version)
	assert.Equal(t, "ABC123", file.RoomID)
	assert.NotZero(t, file.Timestamp)
}

func TestSaveNow_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveNow("ABC123", testSnapshot("s1")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ABC123.json", entries[0].Name())
}

func TestEnqueue_WritesLatestSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	// Burst of mutations; intermediate snapshots may coalesce but the final
	// state must land on disk.
	for i := 1; i <= 50; i++ {
		ids := make([]string, 0, i)
		for j := 1; j <= i; j++ {
			ids = append(ids, "s"+string(rune('0'+j%10)))
		}
		s.Enqueue("ABC123", testSnapshot(ids...))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))

	loaded, err := s.Load("ABC123")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Len(t, loaded.Strokes, 50)
}

func TestEnqueue_AfterCloseIsNoOp(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))

	s.Enqueue("ABC123", testSnapshot("s1"))

	snap, err := s.Load("ABC123")
	assert.NoError(t, err)
	assert.Nil(t, snap)
}

func TestEnqueue_ConcurrentWithCloseDoesNotPanic(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	// Enqueuers race Close across several rooms. Sends after Close must
	// become no-ops rather than hit a closed channel.
	var wg sync.WaitGroup
	rooms := []types.RoomIDType{"AAAAAA", "BBBBBB", "CCCCCC", "DDDDDD"}
	for _, room := range rooms {
		wg.Add(1)
		go func(room types.RoomIDType) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Enqueue(room, testSnapshot("s1"))
			}
		}(room)
	}

	require.NoError(t, s.Close(context.Background()))
	wg.Wait()
}

func TestClose_IsIdempotent(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Close(context.Background()))
	assert.NoError(t, s.Close(context.Background()))
}

func TestEnqueue_SeparateRoomsSeparateFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	s.Enqueue("AAAAAA", testSnapshot("s1"))
	s.Enqueue("BBBBBB", testSnapshot("s1", "s2"))
	require.NoError(t, s.Close(context.Background()))

	a, err := s.Load("AAAAAA")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Len(t, a.Strokes, 1)

	b, err := s.Load("BBBBBB")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Len(t, b.Strokes, 2)
}
