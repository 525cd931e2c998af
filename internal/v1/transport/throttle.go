package transport

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
)

// DefaultCursorInterval is the minimum spacing between cursor:update
// broadcasts per session. Raw pointer events arrive at ~100 Hz; ~28 Hz keeps
// motion smooth at a fraction of the traffic.
const DefaultCursorInterval = 35 * time.Millisecond

// cursorThrottle enforces a minimum interval between emissions with a
// mandatory trailing edge: the latest suppressed emission always fires when
// the window reopens, so peers never see a stuck cursor.
type cursorThrottle struct {
	clock    clock.WithDelayedExecution
	interval time.Duration

	mu       sync.Mutex
	lastSent time.Time
	pending  func()
	timer    clock.Timer
}

func newCursorThrottle(c clock.WithDelayedExecution, interval time.Duration) *cursorThrottle {
	return &cursorThrottle{clock: c, interval: interval}
}

// Submit emits immediately when the window is open; otherwise it replaces
// the pending emission and arms a one-shot timer for the trailing edge.
func (t *cursorThrottle) Submit(emit func()) {
	t.mu.Lock()

	now := t.clock.Now()
	elapsed := now.Sub(t.lastSent)
	if elapsed >= t.interval {
		t.lastSent = now
		t.pending = nil
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
		t.mu.Unlock()
		emit()
		return
	}

	t.pending = emit
	metrics.CursorUpdatesThrottled.Inc()
	if t.timer == nil {
		t.timer = t.clock.AfterFunc(t.interval-elapsed, t.fire)
	}
	t.mu.Unlock()
}

func (t *cursorThrottle) fire() {
	t.mu.Lock()
	emit := t.pending
	t.pending = nil
	t.timer = nil
	if emit != nil {
		t.lastSent = t.clock.Now()
	}
	t.mu.Unlock()

	if emit != nil {
		emit()
	}
}

// Stop cancels any armed trailing emission.
func (t *cursorThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}
