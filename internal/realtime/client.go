package realtime

import (
	"github.com/google/uuid"

	"github.com/F-O-T/contentagen-nx-sub000/internal/platform/logger"
)

// SSEEvent names the SSE "event:" field.
type SSEEvent string

const SSEEventStatus SSEEvent = "status"

// SSEMessage is what the hub routes. Channel is a subject id.
type SSEMessage struct {
	Channel string   `json:"channel"`
	Event   SSEEvent `json:"event"`
	Data    any      `json:"data,omitempty"`
}

type SSEClient struct {
	ID uuid.UUID
	// Subscriber identifies the authenticated caller, or is empty.
	Subscriber string
	Channels   map[string]bool
	Outbound   chan SSEMessage
	done       chan struct{}
	Logger     *logger.Logger
}
