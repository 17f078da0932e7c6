package bus

import (
	"context"

	"github.com/F-O-T/contentagen-nx-sub000/internal/realtime"
)

// Bus carries hub messages between processes. Every process runs a
// forwarder that re-broadcasts into its own hub, the publisher included.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
