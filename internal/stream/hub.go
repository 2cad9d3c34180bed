package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"backend-journitag/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "trip:"
	channelSuffix  = ":events"
	channelPattern = channelPrefix + "*" + channelSuffix
	sendBuffer     = 64
)

// Event is a change on a trip pushed to everyone watching it.
type Event struct {
	Type   string    `json:"type"`
	TripID string    `json:"trip_id"`
	Data   any       `json:"data,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher is what services use to announce trip changes.
type Publisher interface {
	Publish(ctx context.Context, tripID string, ev Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, string, Event) {}

// Hub fans trip events out to websocket clients. With Redis, events go
// through a trip:{id}:events channel so every instance delivers them;
// without it they are delivered in-process.
type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	log     *slog.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	TripID string
	Send   chan []byte
}

func NewHub(redisClient *redis.Client, log *slog.Logger) *Hub {
	h := &Hub{
		redis:   redisClient,
		log:     logger.OrDefault(log),
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx := context.Background()
		ps := redisClient.PSubscribe(ctx, channelPattern)
		// Wait for the subscription so events published right after
		// NewHub returns are not lost.
		if _, err := ps.Receive(ctx); err != nil {
			h.log.Warn("redis subscribe failed, delivering events locally", "error", err)
			_ = ps.Close()
			h.redis = nil
		} else {
			h.pubsub = ps
			go h.subscribeRedis()
		}
	}
	return h
}

// Close stops the Redis subscription.
func (h *Hub) Close() error {
	if h.pubsub != nil {
		return h.pubsub.Close()
	}
	return nil
}

func (h *Hub) Register(tripID string) *Client {
	client := &Client{
		TripID: tripID,
		Send:   make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[tripID] == nil {
		h.clients[tripID] = map[*Client]struct{}{}
	}
	h.clients[tripID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if tripClients, ok := h.clients[client.TripID]; ok {
		if _, registered := tripClients[client]; !registered {
			return
		}
		delete(tripClients, client)
		if len(tripClients) == 0 {
			delete(h.clients, client.TripID)
		}
		close(client.Send)
	}
}

// Publish sends ev to the clients watching tripID.
func (h *Hub) Publish(ctx context.Context, tripID string, ev Event) {
	ev.TripID = tripID
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal trip event", "trip_id", tripID, "type", ev.Type, "error", err)
		return
	}
	h.Broadcast(ctx, tripID, payload)
}

// Broadcast delivers a raw payload to the clients watching tripID.
func (h *Hub) Broadcast(ctx context.Context, tripID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(ctx, redisChannel(tripID), payload).Err()
		if err == nil {
			return
		}
		h.log.Warn("redis publish failed, delivering locally", "trip_id", tripID, "error", err)
	}
	h.deliver(tripID, payload)
}

// deliver drops the payload for clients whose buffer is full.
func (h *Hub) deliver(tripID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[tripID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	for msg := range h.pubsub.Channel() {
		tripID := tripIDFromChannel(msg.Channel)
		if tripID == "" {
			continue
		}
		h.deliver(tripID, []byte(msg.Payload))
	}
}

func redisChannel(tripID string) string {
	return channelPrefix + tripID + channelSuffix
}

func tripIDFromChannel(ch string) string {
	// trip:{id}:events
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
