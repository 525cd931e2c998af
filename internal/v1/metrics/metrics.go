package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the collaborative canvas server.
//
// Naming convention: namespace_subsystem_name
// - namespace: collab_canvas (application-level grouping)
// - subsystem: websocket, room, persistence (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collab_canvas",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "collab_canvas",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomParticipants tracks the number of participants in each room
	RoomParticipants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "collab_canvas",
		Subsystem: "room",
		Name:      "participants_count",
		Help:      "Number of participants in each room",
	}, []string{"room_id"})

	// WebsocketEvents tracks the total number of WebSocket events processed
	WebsocketEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab_canvas",
		Subsystem: "websocket",
		Name:      "events_total",
		Help:      "Total WebSocket events processed",
	}, []string{"event_type", "status"})

	// EventProcessingDuration tracks the time spent processing WebSocket events
	EventProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "collab_canvas",
		Subsystem: "websocket",
		Name:      "event_processing_seconds",
		Help:      "Time spent processing WebSocket events",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"event_type"})

	// SnapshotWrites tracks room snapshot persistence outcomes
	SnapshotWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab_canvas",
		Subsystem: "persistence",
		Name:      "snapshot_writes_total",
		Help:      "Total room snapshot write attempts",
	}, []string{"status"})

	// CursorUpdatesThrottled counts cursor messages coalesced by the throttle
	CursorUpdatesThrottled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "collab_canvas",
		Subsystem: "websocket",
		Name:      "cursor_updates_throttled_total",
		Help:      "Cursor updates held back by the per-session throttle",
	})

	// RateLimitExceeded counts requests rejected by rate limiting
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "collab_canvas",
		Subsystem: "websocket",
		Name:      "rate_limit_exceeded_total",
		Help:      "Requests rejected due to rate limiting",
	}, []string{"endpoint", "limit_type"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
