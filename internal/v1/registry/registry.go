// Package registry owns the mapping from room code to live room. It
// deduplicates concurrent cold-miss loads so two simultaneous first joins
// can never construct two rooms, and it runs the empty-room grace timers.
package registry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/canvas"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/protocol"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// DefaultGracePeriod is how long an empty room survives before it is
// snapshotted and removed.
const DefaultGracePeriod = 60 * time.Second

// Store is the persistence surface the registry needs.
type Store interface {
	canvas.SnapshotSink
	Load(roomID types.RoomIDType) (*types.RoomSnapshot, error)
	SaveNow(roomID types.RoomIDType, snap *types.RoomSnapshot) error
}

// Registry is safe for concurrent use. The mutex is held only around the
// maps; disk loads happen outside it, guarded by per-code in-flight entries.
// cleanupEntry identifies one armed grace timer. The pointer doubles as the
// firing's identity token so a cancelled or superseded timer can recognize
// itself as stale.
type cleanupEntry struct {
	timer clock.Timer
}

type Registry struct {
	mu              sync.Mutex
	rooms           map[types.RoomIDType]*canvas.Room
	loading         map[types.RoomIDType]chan struct{}
	pendingCleanups map[types.RoomIDType]*cleanupEntry

	store       Store
	gracePeriod time.Duration
	clock       clock.WithDelayedExecution
}

// New creates a Registry backed by the given store.
func New(store Store) *Registry {
	return NewWithClock(store, clock.RealClock{}, DefaultGracePeriod)
}

// NewWithClock injects a clock and grace period, for tests.
func NewWithClock(store Store, c clock.WithDelayedExecution, grace time.Duration) *Registry {
	return &Registry{
		rooms:           make(map[types.RoomIDType]*canvas.Room),
		loading:         make(map[types.RoomIDType]chan struct{}),
		pendingCleanups: make(map[types.RoomIDType]*cleanupEntry),
		store:           store,
		gracePeriod:     grace,
		clock:           c,
	}
}

// GetOrCreate returns the canonical room for a code, creating it on first
// access. On a cold miss the persisted snapshot is loaded; concurrent cold
// misses for the same code share a single load. A pending cleanup for the
// room is cancelled.
func (r *Registry) GetOrCreate(ctx context.Context, code types.RoomIDType) (*canvas.Room, error) {
	if err := protocol.ValidateRoomCode(string(code)); err != nil {
		return nil, err
	}

	for {
		r.mu.Lock()
		if room, ok := r.rooms[code]; ok {
			r.cancelCleanupLocked(code)
			r.mu.Unlock()
			return room, nil
		}

		if ch, ok := r.loading[code]; ok {
			// Another caller is loading this room; await its result.
			r.mu.Unlock()
			select {
			case <-ch:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		ch := make(chan struct{})
		r.loading[code] = ch
		r.mu.Unlock()

		room := r.loadRoom(ctx, code)

		r.mu.Lock()
		r.rooms[code] = room
		delete(r.loading, code)
		close(ch)
		r.mu.Unlock()

		metrics.ActiveRooms.Inc()
		return room, nil
	}
}

// loadRoom performs the cold-path disk read. Read failures degrade to a
// fresh empty room; the registry never crashes on corrupt snapshots.
func (r *Registry) loadRoom(ctx context.Context, code types.RoomIDType) *canvas.Room {
	room := canvas.NewRoom(code, r.ScheduleCleanup, r.store)

	snap, err := r.store.Load(code)
	if err != nil {
		logging.Warn(ctx, "Failed to load room snapshot, starting fresh",
			zap.String("room", string(code)), zap.Error(err))
		return room
	}
	if snap == nil {
		logging.Info(ctx, "Creating new room", zap.String("room", string(code)))
		return room
	}

	room.Hydrate(snap)
	logging.Info(ctx, "Restored room from disk",
		zap.String("room", string(code)), zap.Int("strokes", len(snap.Strokes)))
	return room
}

// Get returns the live room for a code, or nil. It never creates.
func (r *Registry) Get(code types.RoomIDType) *canvas.Room {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rooms[code]
}

// ScheduleCleanup starts the empty-room grace timer. On expiry, if the room
// still has zero users, a final snapshot is persisted and the room removed.
// Rescheduling resets any existing timer.
func (r *Registry) ScheduleCleanup(code types.RoomIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelCleanupLocked(code)

	entry := &cleanupEntry{}
	entry.timer = r.clock.AfterFunc(r.gracePeriod, func() {
		r.expireRoom(code, entry)
	})
	r.pendingCleanups[code] = entry
}

// CancelCleanup stops a pending cleanup timer. Idempotent.
func (r *Registry) CancelCleanup(code types.RoomIDType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelCleanupLocked(code)
}

func (r *Registry) cancelCleanupLocked(code types.RoomIDType) {
	if entry, ok := r.pendingCleanups[code]; ok {
		entry.timer.Stop()
		delete(r.pendingCleanups, code)
	}
}

// expireRoom runs when a grace timer fires.
func (r *Registry) expireRoom(code types.RoomIDType, entry *cleanupEntry) {
	r.mu.Lock()

	// A cancelled or rescheduled cleanup removes or replaces the tracked
	// entry under this mutex; a firing that carries a stale entry lost that
	// race and must not act.
	if current, ok := r.pendingCleanups[code]; !ok || current != entry {
		r.mu.Unlock()
		return
	}

	room, ok := r.rooms[code]
	if !ok {
		delete(r.pendingCleanups, code)
		r.mu.Unlock()
		return
	}

	// A user may have rejoined between the timer firing and the lock.
	if room.UserCount() > 0 {
		delete(r.pendingCleanups, code)
		r.mu.Unlock()
		logging.Info(context.Background(), "Cancelled room cleanup - room is active",
			zap.String("room", string(code)))
		return
	}

	delete(r.rooms, code)
	delete(r.pendingCleanups, code)
	r.mu.Unlock()

	// Final save outside the lock so a slow disk cannot stall the registry.
	if err := r.store.SaveNow(code, room.Snapshot()); err != nil {
		logging.Error(context.Background(), "Final snapshot save failed",
			zap.String("room", string(code)), zap.Error(err))
	}

	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(code))
	logging.Info(context.Background(), "Removed empty room after grace period",
		zap.String("room", string(code)))
}

// Shutdown cancels all grace timers and persists a final snapshot of every
// live room.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for code, entry := range r.pendingCleanups {
		entry.timer.Stop()
		delete(r.pendingCleanups, code)
	}
	rooms := make(map[types.RoomIDType]*canvas.Room, len(r.rooms))
	for code, room := range r.rooms {
		rooms[code] = room
	}
	r.mu.Unlock()

	for code, room := range rooms {
		if err := r.store.SaveNow(code, room.Snapshot()); err != nil {
			logging.Error(ctx, "Shutdown snapshot save failed",
				zap.String("room", string(code)), zap.Error(err))
		}
	}

	logging.Info(ctx, "Registry shut down", zap.Int("rooms", len(rooms)))
	return nil
}
