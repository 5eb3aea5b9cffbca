package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventProviderConnected    = "provider.connected"
	EventProviderDisconnected = "provider.disconnected"
	EventBranchPushed         = "branch.pushed"
	EventMarketplacePublished = "marketplace.published"
)

// ProviderEvent is broadcast when a provider account connects or disconnects.
type ProviderEvent struct {
	Provider string `json:"provider"`
	Login    string `json:"login,omitempty"`
}

// BranchPushedEvent is broadcast after a successful branch push.
type BranchPushedEvent struct {
	Provider string `json:"provider"`
	Repo     string `json:"repo"`
	Branch   string `json:"branch"`
	Files    int    `json:"files"`
}

// MarketplacePublishedEvent is broadcast when a skill lands on a marketplace.
type MarketplacePublishedEvent struct {
	Provider  string `json:"provider"`
	SnippetID string `json:"snippet_id"`
	Name      string `json:"name"`
}

// BroadcastEvent is a convenience method that marshals a typed event and
// broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
