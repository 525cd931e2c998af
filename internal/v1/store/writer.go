package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// roomWriter serializes writes for one room. Its pending channel holds at
// most one snapshot: rapid mutations coalesce to the latest state, which is
// correct because each snapshot is the complete room.
type roomWriter struct {
	pending chan *types.RoomSnapshot
}

// Enqueue hands a snapshot to the room's background writer without ever
// blocking the caller. Stale queued snapshots are replaced by newer ones.
func (s *FileStore) Enqueue(roomID types.RoomIDType, snap *types.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	w, ok := s.writers[roomID]
	if !ok {
		w = &roomWriter{pending: make(chan *types.RoomSnapshot, 1)}
		s.writers[roomID] = w
		s.wg.Add(1)
		go s.runWriter(roomID, w)
	}

	// The send must stay under the mutex: Close closes pending while holding
	// it. Neither select blocks; a full slot means the stale snapshot is
	// dropped and the send retried.
	for {
		select {
		case w.pending <- snap:
			return
		default:
		}
		select {
		case <-w.pending:
		default:
		}
	}
}

func (s *FileStore) runWriter(roomID types.RoomIDType, w *roomWriter) {
	defer s.wg.Done()

	for snap := range w.pending {
		if err := s.write(roomID, snap); err != nil {
			logging.Error(context.Background(), "Failed to persist room snapshot",
				zap.String("room", string(roomID)), zap.Error(err))
		}
	}
}
