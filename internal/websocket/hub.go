package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"ai-trivia-bot/internal/pkg/logger"
	"ai-trivia-bot/pkg/events"
)

// Hub fans the bot's activity stream (archive mutations, query outcomes) out
// to connected dashboard clients. Every event goes to every client; there is
// no per-connection targeting.
type Hub struct {
	// Registered clients keyed by connection id
	clients map[uuid.UUID]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance fan-out; nil runs single-instance
	rdb *redis.Client

	logger logger.ILogger
}

const activityChannel = "activity_events"

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"conn_id": client.ID})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				close(client.Send)
				delete(h.clients, client.ID)
				h.logger.Info("Hub", "Client unregistered", map[string]interface{}{"conn_id": client.ID})
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastEvent delivers one domain event to every local client and mirrors
// it to the redis channel so other instances can do the same.
func (h *Hub) BroadcastEvent(event events.Event) {
	data, err := json.Marshal(map[string]interface{}{
		"type": event.EventType(),
		"data": event.Payload(),
		"at":   event.Timestamp(),
	})
	if err != nil {
		return
	}

	if h.rdb != nil {
		// Local clients get the event through our own subscription,
		// so publish-only avoids double delivery on this instance.
		h.rdb.Publish(context.Background(), activityChannel, data)
		return
	}
	h.deliverLocal(data)
}

func (h *Hub) deliverLocal(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow consumer: drop it rather than stall the event stream.
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
				"conn_id": client.ID,
			})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, activityChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.deliverLocal([]byte(msg.Payload))
	}
}
