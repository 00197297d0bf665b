package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// Gateway is the single fan-out point used by all mutation paths. It delivers
// to the local hub and, when a bus is configured, mirrors the broadcast to
// every other instance. With no hub it degrades to a no-op, which keeps
// contexts without a live transport (migrations, tests, startup) working.
type Gateway struct {
	hub    *Hub
	bus    *Bus
	origin string
}

func NewGateway(hub *Hub, bus *Bus) *Gateway {
	return &Gateway{
		hub:    hub,
		bus:    bus,
		origin: uuid.NewString(),
	}
}

func (g *Gateway) Broadcast(conversationID string, event string, data interface{}) {
	if g == nil || g.hub == nil {
		return
	}

	g.hub.Broadcast(conversationID, event, data)

	if g.bus == nil {
		return
	}

	raw, err := json.Marshal(data)
	if err != nil {
		utils.LogError("gateway: encode bus payload", err, map[string]interface{}{
			"event": event,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = g.bus.Publish(ctx, Envelope{
		Origin:         g.origin,
		ConversationID: conversationID,
		Event:          event,
		Data:           raw,
	})
	if err != nil {
		utils.LogWarn("gateway: bus publish failed", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
	}
}

// Start attaches the bus forwarder: envelopes published by other instances
// are re-delivered to the local hub only, never re-published.
func (g *Gateway) Start(ctx context.Context) error {
	if g == nil || g.bus == nil {
		return nil
	}
	return g.bus.StartForwarder(ctx, func(env Envelope) {
		if env.Origin == g.origin {
			return
		}
		g.hub.Broadcast(env.ConversationID, env.Event, env.Data)
	})
}
