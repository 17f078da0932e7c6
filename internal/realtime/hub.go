package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

const (
	defaultOutboundBuffer = 32
	defaultHeartbeat      = 15 * time.Second
)

// SSEHub fans messages out to the clients subscribed on each channel.
// Broadcast never blocks: a client whose buffer is full loses the message.
type SSEHub struct {
	mu            sync.RWMutex
	logger        *logger.Logger
	subscriptions map[string]map[*SSEClient]bool

	Heartbeat      time.Duration
	OutboundBuffer int
}

func NewSSEHub(log *logger.Logger) *SSEHub {
	return &SSEHub{
		logger:         log.With("component", "SSEHub"),
		subscriptions:  make(map[string]map[*SSEClient]bool),
		Heartbeat:      defaultHeartbeat,
		OutboundBuffer: defaultOutboundBuffer,
	}
}

func (hub *SSEHub) NewSSEClient(subscriber string) *SSEClient {
	size := hub.OutboundBuffer
	if size <= 0 {
		size = defaultOutboundBuffer
	}
	id := uuid.New()
	return &SSEClient{
		ID:         id,
		Subscriber: subscriber,
		Channels:   make(map[string]bool),
		Outbound:   make(chan SSEMessage, size),
		done:       make(chan struct{}),
		Logger:     hub.logger.With("clientID", id.String()),
	}
}

func (hub *SSEHub) AddChannel(client *SSEClient, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()

	client.Channels[channel] = true
	clients, ok := hub.subscriptions[channel]
	if !ok {
		clients = make(map[*SSEClient]bool)
		hub.subscriptions[channel] = clients
	}
	clients[client] = true
	hub.logger.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (hub *SSEHub) RemoveClient(client *SSEClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	for ch := range client.Channels {
		if subs, ok := hub.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	hub.logger.Debug("SSE client unsubscribed from all channels", "clientID", client.ID)
}

// Subscribers reports how many clients listen on channel.
func (hub *SSEHub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

func (hub *SSEHub) Broadcast(msg SSEMessage) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for c := range hub.subscriptions[msg.Channel] {
		select {
		case c.Outbound <- msg:
		default:
			hub.logger.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID, "channel", msg.Channel)
		}
	}
}

// ServeHTTP streams client's messages until the request ends or the client
// is closed.
func (hub *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *SSEClient) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	interval := hub.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			hub.logger.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-client.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(msg.Data)
			if err != nil {
				hub.logger.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
			flusher.Flush()
		}
	}
}

// CloseClient unsubscribes client and closes its outbound channel. Safe to
// call once per client.
func (hub *SSEHub) CloseClient(client *SSEClient) {
	hub.RemoveClient(client)
	hub.mu.Lock()
	close(client.done)
	close(client.Outbound)
	hub.mu.Unlock()
}
