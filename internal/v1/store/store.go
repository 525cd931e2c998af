// Package store persists room snapshots as schema-versioned JSON files,
// one per room, under the configured data directory. Writes are atomic
// (write-then-rename) and dispatched asynchronously so room mutators never
// block on disk.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// SchemaVersion is the on-disk snapshot format version.
const SchemaVersion = 1

// snapshotFile is the on-disk record.
type snapshotFile struct {
	Version          int                `json:"version"`
	RoomID           string             `json:"roomId"`
	Strokes          []*types.Stroke    `json:"strokes"`
	OperationHistory []*types.Operation `json:"operationHistory"`
	UndoneOperations []*types.Operation `json:"undoneOperations"`
	Timestamp        int64              `json:"timestamp"`
}

// FileStore writes one snapshot file per room. A circuit breaker guards the
// disk so a persistently failing volume stops burning syscalls; in-memory
// state stays authoritative either way.
type FileStore struct {
	dir     string
	breaker *gobreaker.CircuitBreaker

	mu      sync.Mutex
	writers map[types.RoomIDType]*roomWriter
	closed  bool
	wg      sync.WaitGroup
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "snapshot-writes",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn(context.Background(), "Snapshot write breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &FileStore{
		dir:     dir,
		breaker: breaker,
		writers: make(map[types.RoomIDType]*roomWriter),
	}, nil
}

// Dir returns the data directory path.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(roomID types.RoomIDType) string {
	return filepath.Join(s.dir, string(roomID)+".json")
}

// Load reads a room snapshot from disk. A missing file returns (nil, nil);
// corrupt contents or a schema mismatch return an error so the caller can
// log and fall back to a fresh room.
func (s *FileStore) Load(roomID types.RoomIDType) (*types.RoomSnapshot, error) {
	data, err := os.ReadFile(s.path(roomID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if file.Version != SchemaVersion {
		return nil, fmt.Errorf("%w: %d", types.ErrSnapshotSchema, file.Version)
	}

	return &types.RoomSnapshot{
		Strokes:          file.Strokes,
		OperationHistory: file.OperationHistory,
		UndoneOperations: file.UndoneOperations,
	}, nil
}

// SaveNow writes a snapshot synchronously. Used for the empty-room final
// save and shutdown flushes; the hot path goes through Enqueue.
func (s *FileStore) SaveNow(roomID types.RoomIDType, snap *types.RoomSnapshot) error {
	return s.write(roomID, snap)
}

func (s *FileStore) write(roomID types.RoomIDType, snap *types.RoomSnapshot) error {
	_, err := s.breaker.Execute(func() (any, error) {
		file := snapshotFile{
			Version:          SchemaVersion,
			RoomID:           string(roomID),
			Strokes:          snap.Strokes,
			OperationHistory: snap.OperationHistory,
			UndoneOperations: snap.UndoneOperations,
			Timestamp:        time.Now().UnixMilli(),
		}
		data, err := json.Marshal(&file)
		if err != nil {
			return nil, fmt.Errorf("encode snapshot: %w", err)
		}

		tmp, err := os.CreateTemp(s.dir, string(roomID)+".*.tmp")
		if err != nil {
			return nil, fmt.Errorf("create temp file: %w", err)
		}
		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("write snapshot: %w", err)
		}
		if err := tmp.Close(); err != nil {
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("close snapshot: %w", err)
		}
		if err := os.Rename(tmp.Name(), s.path(roomID)); err != nil {
			os.Remove(tmp.Name())
			return nil, fmt.Errorf("rename snapshot: %w", err)
		}
		return nil, nil
	})

	if err != nil {
		metrics.SnapshotWrites.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotWrites.WithLabelValues("ok").Inc()
	return nil
}

// Close stops all room writers and waits for in-flight writes to finish.
func (s *FileStore) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, w := range s.writers {
		close(w.pending)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
