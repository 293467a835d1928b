// Package notify pushes queue updates to connected WebSocket clients.
// Waiting-room displays and nurse dashboards hold one connection each
// and receive the full snapshot after every queue mutation.
package notify

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/smart-triage-engine/internal/domain"
)

// EventQueueUpdated is sent after every successful queue mutation.
const EventQueueUpdated = "queue.updated"

// Event is the wire format pushed to clients.
type Event struct {
	Type      string                `json:"type"`
	Snapshot  *domain.QueueSnapshot `json:"snapshot,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte
}

// Hub tracks connected clients and fans queue snapshots out to them.
// All operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
}

// Broadcast pushes the snapshot to every connected client. Clients
// whose send buffer is full are skipped rather than blocking the
// queue manager's mutation path.
func (h *Hub) Broadcast(snapshot *domain.QueueSnapshot) {
	event := Event{
		Type:      EventQueueUpdated,
		Snapshot:  snapshot,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).Error("Failed to marshal queue event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.log.WithField("client_id", client.ID).Warn("Client send buffer full, dropping update")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Displays connect from the kiosk's local network; origin
		// checks happen at the reverse proxy.
		return true
	},
}

// HandleConnect upgrades the HTTP connection, registers the client,
// and starts the read and write pumps. Mounted on GET /ws.
func (h *Hub) HandleConnect(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 64),
	}
	h.Register(client)
	h.log.WithField("client_id", client.ID).Info("WebSocket client connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
}

// readPump drains inbound frames. Clients send nothing meaningful;
// the read loop exists to detect disconnects.
func (h *Hub) readPump(client *Client, ws *websocket.Conn) {
	defer func() {
		h.Unregister(client)
		ws.Close()
		h.log.WithField("client_id", client.ID).Info("WebSocket client disconnected")
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *Client, ws *websocket.Conn) {
	defer ws.Close()

	for message := range client.Send {
		if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	// Send channel closed by Unregister.
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
