// Package dashboard serves the live telemetry feed over HTTP/WebSocket.
// Clients get JSON messages: {"type":"values",...} snapshots and
// {"type":"can","frame":...} raw traffic lines. There is deliberately no
// HTML page; the feed is meant for external dashboards.
package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bamocar-bench/bamocar"
)

// Values is the dashboard state snapshot.
type Values struct {
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	RPM      int     `json:"rpm"`
	Torque   int     `json:"torque"`
	SpeedKmh float64 `json:"speed_kmh"`
}

type canLine struct {
	Type  string `json:"type"`
	Frame string `json:"frame"`
}

const writeTimeout = 2 * time.Second

// Hub broadcasts telemetry to connected WebSocket clients.
type Hub struct {
	log      bamocar.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	values  Values

	server *http.Server
}

func NewHub(logger bamocar.Logger) *Hub {
	return &Hub{
		log: logger,
		upgrader: websocket.Upgrader{
			// The bench runs on a closed test network.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
		values:  Values{Type: "values", Status: "Unknown"},
	}
}

// Handler returns the HTTP routes of the feed.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handleSnapshot)
	mux.HandleFunc("/ws", h.handleWS)
	return mux
}

// Start serves the feed on addr until the context is cancelled.
func (h *Hub) Start(ctx context.Context, addr string) {
	h.server = &http.Server{Addr: addr, Handler: h.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.server.Shutdown(shutdownCtx)
	}()

	go func() {
		h.log.Info("Dashboard feed listening on %s", addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.log.Error("Dashboard server error: %v", err)
		}
	}()
}

func (h *Hub) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	snapshot := h.values
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	snapshot := h.values
	h.mu.Unlock()

	// Send the current state before joining the broadcast set, so the
	// initial write cannot interleave with a broadcast.
	payload, _ := json.Marshal(snapshot)
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.log.Info("Dashboard client connected (%d total)", count)

	// Drain (and discard) client messages to notice disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		h.log.Info("Dashboard client disconnected (%d total)", len(h.clients))
	}
	h.mu.Unlock()
	conn.Close()
}

// BroadcastValues pushes a fresh state snapshot to every client.
func (h *Hub) BroadcastValues(status string, rpm int, torque int, speedKmh float64) {
	h.mu.Lock()
	h.values = Values{Type: "values", Status: status, RPM: rpm, Torque: torque, SpeedKmh: speedKmh}
	payload, _ := json.Marshal(h.values)
	h.mu.Unlock()

	h.broadcast(payload)
}

// BroadcastFrame pushes one raw traffic line to every client.
func (h *Hub) BroadcastFrame(line string) {
	payload, err := json.Marshal(canLine{Type: "can", Frame: line})
	if err != nil {
		return
	}
	h.broadcast(payload)
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(conn)
		}
	}
}

// Snapshot returns the current values for the HTTP endpoint and tests.
func (h *Hub) Snapshot() Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.values
}
