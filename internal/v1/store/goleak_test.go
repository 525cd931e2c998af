package store

import (
	"context"
	"testing"

	"go.uber.org/goleak"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestClose_StopsAllRoomWriters(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	// Spin up a writer goroutine per room, then make sure Close reaps them.
	for _, code := range []types.RoomIDType{"AAAAAA", "BBBBBB", "CCCCCC"} {
		s.Enqueue(code, testSnapshot("s1"))
	}

	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Leaked writer goroutines are caught by TestMain's goleak.VerifyTestMain.
}
