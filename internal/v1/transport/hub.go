package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/drawdeck/drawdeck/backend/go/internal/v1/config"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/logging"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/metrics"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/protocol"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/ratelimit"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/registry"
	"github.com/drawdeck/drawdeck/backend/go/internal/v1/types"
)

// maxMessageBytes caps a single inbound frame. Oversized frames terminate
// the read with an error from gorilla, which the client treats as a drop.
const maxMessageBytes = 1 << 20

// DefaultMaxRoomUsers caps participants per room when no limit is configured.
const DefaultMaxRoomUsers = 50

// Hub is the broadcast router. It owns the per-room session sets and
// dispatches every client event through validation, the room state machine,
// and fan-out.
type Hub struct {
	registry    *registry.Registry
	rateLimiter *ratelimit.RateLimiter

	mu       sync.Mutex
	sessions map[types.RoomIDType]map[types.ClientIDType]*Client

	clock          clock.WithDelayedExecution
	cursorInterval time.Duration
	allowedOrigins []string
	maxRoomUsers   int
}

// NewHub wires the router to its registry. rateLimiter may be nil (tests);
// maxRoomUsers <= 0 selects the default occupancy cap.
func NewHub(reg *registry.Registry, rateLimiter *ratelimit.RateLimiter, allowedOrigins []string, maxRoomUsers int) *Hub {
	if maxRoomUsers <= 0 {
		maxRoomUsers = DefaultMaxRoomUsers
	}
	return &Hub{
		registry:       reg,
		rateLimiter:    rateLimiter,
		sessions:       make(map[types.RoomIDType]map[types.ClientIDType]*Client),
		clock:          clock.RealClock{},
		cursorInterval: DefaultCursorInterval,
		allowedOrigins: allowedOrigins,
		maxRoomUsers:   maxRoomUsers,
	}
}

// ServeWs upgrades an HTTP request to a WebSocket session. Every connection
// gets a fresh session id; there is no authentication, so anyone with a room
// code may join.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.rateLimiter != nil && !h.rateLimiter.CheckWebSocket(c) {
		return // Response already written by CheckWebSocket
	}

	allowedOrigins := h.allowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = config.GetAllowedOrigins("", []string{"http://localhost:3000"})
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Allow non-browser clients (e.g., for testing)
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, allowed := range allowedOrigins {
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	client := h.NewClient(conn)
	logging.Info(c.Request.Context(), "Session connected", zap.String("sessionId", string(client.ID)))

	metrics.IncConnection()

	go client.writePump()
	go client.readPump()
}

// NewClient builds a session around an established connection.
func (h *Hub) NewClient(conn wsConnection) *Client {
	return &Client{
		conn:     conn,
		hub:      h,
		ID:       types.ClientIDType(uuid.NewString()),
		send:     make(chan []byte, 256),
		throttle: newCursorThrottle(h.clock, h.cursorInterval),
	}
}

// --- Session membership and fan-out ---

func (h *Hub) addSession(roomID types.RoomIDType, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[roomID] == nil {
		h.sessions[roomID] = make(map[types.ClientIDType]*Client)
	}
	h.sessions[roomID][c.ID] = c
}

func (h *Hub) removeSession(roomID types.RoomIDType, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.sessions[roomID]; ok {
		delete(peers, c.ID)
		if len(peers) == 0 {
			delete(h.sessions, roomID)
		}
	}
}

// emit fans an event out to the room. except scopes the delivery: pass the
// origin's id for "room except origin", or "" for the whole room.
func (h *Hub) emit(roomID types.RoomIDType, event string, payload any, except types.ClientIDType) {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to encode broadcast",
			zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	peers := make([]*Client, 0, len(h.sessions[roomID]))
	for id, peer := range h.sessions[roomID] {
		if id == except {
			continue
		}
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	for _, peer := range peers {
		peer.sendRaw(data)
	}
}

// Shutdown disconnects every session and flushes final room snapshots.
func (h *Hub) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "Shutting down hub - closing all sessions")

	h.mu.Lock()
	var clients []*Client
	for _, peers := range h.sessions {
		for _, c := range peers {
			clients = append(clients, c)
		}
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.throttle.Stop()
		c.Disconnect()
	}

	return h.registry.Shutdown(ctx)
}
