package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshuakim/propedge/internal/metrics"
	"github.com/joshuakim/propedge/internal/models"
)

// Channels clients can subscribe to
type Channel string

const (
	ChannelGames Channel = "games"
	ChannelLocks Channel = "locks"
)

// Message types
const (
	MessageTypeGamesUpdate = "games_update"
	MessageTypeLockAlert   = "lock_alert"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypeError       = "error"
	MessageTypeStatus      = "status"
	MessageTypePong        = "pong"
)

// Message represents a WebSocket message
type Message struct {
	Type      string                  `json:"type"`
	Channel   string                  `json:"channel,omitempty"`
	Games     []models.ScoreboardGame `json:"games,omitempty"`
	Locks     []models.PropResult     `json:"locks,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
	Error     string                  `json:"error,omitempty"`
	Status    string                  `json:"status,omitempty"`
}

// Hub maintains the set of active clients and broadcasts scoreboard changes
// and lock alerts to their subscribers.
type Hub struct {
	clients       map[*Client]bool
	subscriptions map[Channel]map[*Client]bool

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	metrics *metrics.Metrics
	logger  *logrus.Logger

	maxConnections int
}

// NewHub creates a new Hub
func NewHub(m *metrics.Metrics, logger *logrus.Logger, maxConnections int) *Hub {
	if maxConnections <= 0 {
		maxConnections = 1000
	}
	return &Hub{
		clients:        make(map[*Client]bool),
		subscriptions:  make(map[Channel]map[*Client]bool),
		register:       make(chan *Client, 256),
		unregister:     make(chan *Client, 256),
		metrics:        m,
		logger:         logger,
		maxConnections: maxConnections,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.clients) >= h.maxConnections {
		h.logger.Warnf("WebSocket: Connection rejected - at capacity (%d)", h.maxConnections)
		errMsg := Message{
			Type:      MessageTypeError,
			Error:     "Server at capacity, please try again later",
			Timestamp: time.Now(),
		}
		data, _ := json.Marshal(errMsg)
		client.send <- data
		close(client.send)
		return
	}

	h.clients[client] = true
	h.metrics.WSConnections.Inc()
	h.logger.Debugf("WebSocket: Client connected (total: %d)", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		for channel := range h.subscriptions {
			delete(h.subscriptions[channel], client)
		}
		close(client.send)
		h.metrics.WSConnections.Dec()
		h.logger.Debugf("WebSocket: Client disconnected (total: %d)", len(h.clients))
	}
}

// Subscribe adds a client to a channel's subscription list
func (h *Hub) Subscribe(client *Client, channel Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[channel] == nil {
		h.subscriptions[channel] = make(map[*Client]bool)
	}
	h.subscriptions[channel][client] = true
	h.logger.Debugf("WebSocket: Client subscribed to %s (subscribers: %d)", channel, len(h.subscriptions[channel]))
}

// Unsubscribe removes a client from a channel's subscription list
func (h *Hub) Unsubscribe(client *Client, channel Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscriptions[channel] != nil {
		delete(h.subscriptions[channel], client)
	}
}

// BroadcastGames sends a scoreboard update to all clients on the games
// channel.
func (h *Hub) BroadcastGames(snap models.GameSnapshot) {
	h.broadcast(ChannelGames, Message{
		Type:      MessageTypeGamesUpdate,
		Channel:   string(ChannelGames),
		Games:     snap.Games,
		Timestamp: time.Now(),
	})
}

// BroadcastLocks sends a lock alert to all clients on the locks channel.
func (h *Hub) BroadcastLocks(locks []models.PropResult) {
	if len(locks) == 0 {
		return
	}
	h.broadcast(ChannelLocks, Message{
		Type:      MessageTypeLockAlert,
		Channel:   string(ChannelLocks),
		Locks:     locks,
		Timestamp: time.Now(),
	})
}

func (h *Hub) broadcast(channel Channel, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("WebSocket: Failed to marshal broadcast message")
		return
	}

	h.mu.RLock()
	subscribers := h.subscriptions[channel]
	clientCount := len(subscribers)
	h.mu.RUnlock()

	if clientCount == 0 {
		return
	}

	h.metrics.WSBroadcasts.Inc()

	// Slow clients are marked and dropped rather than blocking the broadcast.
	var failedClients []*Client

	h.mu.RLock()
	for client := range subscribers {
		select {
		case client.send <- data:
		default:
			failedClients = append(failedClients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range failedClients {
		h.logger.Debug("WebSocket: Removing slow client")
		h.unregister <- client
	}

	h.logger.Debugf("WebSocket: Broadcast %s to %d clients (%d bytes)", channel, clientCount-len(failedClients), len(data))
}

// GetStats returns hub statistics
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channelSubs := make(map[string]int)
	for channel, clients := range h.subscriptions {
		channelSubs[string(channel)] = len(clients)
	}

	return map[string]interface{}{
		"total_clients":   len(h.clients),
		"max_connections": h.maxConnections,
		"subscriptions":   channelSubs,
	}
}

// CanAccept returns whether the hub can accept new connections
func (h *Hub) CanAccept() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients) < h.maxConnections
}

// ClientCount returns the current number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
