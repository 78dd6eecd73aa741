package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"drillagg/internal/infrastructure"
	"drillagg/pkg/contracts/domain"
)

const (
	// TypeConnection is sent to a client right after it registers
	TypeConnection = "connection"

	broadcastBuffer = 256
)

// Message is the envelope of every frame sent to clients
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and broadcasts run events to them
type Hub struct {
	// Registered clients, owned by the Run loop
	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	count   int

	logger *slog.Logger

	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewHub creates a hub; call Start before publishing
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the hub loop in its own goroutine
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Stop ends the hub loop and disconnects every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})

	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if running {
		<-h.done
	}
}

// Run is the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			for client := range h.clients {
				h.drop(client)
			}
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			h.logger.Info("Client registered",
				slog.Int("total_clients", len(h.clients)),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			welcome, err := encode(Message{
				Type: TypeConnection,
				Data: map[string]string{
					"status":    "connected",
					"client_id": client.id,
				},
				Timestamp: time.Now(),
			})
			if err == nil {
				select {
				case client.send <- welcome:
				default:
				}
			}

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.logger.Info("Client unregistered",
					slog.Int("total_clients", len(h.clients)),
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.drop(client)
					h.logger.Warn("Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Publish broadcasts a run event. Events are dropped rather than blocking
// the run when the hub is stopped or its queue is full.
func (h *Hub) Publish(event domain.RunEvent) {
	data, err := encode(Message{
		Type:      string(event.Type),
		Data:      event,
		Timestamp: event.Timestamp,
		TraceID:   event.RunID,
	})
	if err != nil {
		h.logger.Error("Error marshaling event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.Type)))
		return
	}
	h.Broadcast(data)
}

// Broadcast queues a raw frame for every client
func (h *Hub) Broadcast(message []byte) {
	select {
	case <-h.quit:
		return
	default:
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("Broadcast queue full, dropping message",
			slog.Int("message_size", len(message)))
	}
}

func encode(m Message) ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}
