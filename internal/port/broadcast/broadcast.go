// Package broadcast defines the port for pushing real-time events to
// connected clients.
package broadcast

import "context"

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Noop discards all events. Used by CLI entry points that have no clients.
type Noop struct{}

func (Noop) BroadcastEvent(context.Context, string, any) {}
