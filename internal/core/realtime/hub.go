package realtime

import (
	"encoding/json"

	"github.com/primaruang/realty-crm-be/internal/shared/utils"
)

// Event names pushed to room members.
const (
	EventNewMessage          = "new_message"
	EventAIUpdate            = "ai_update"
	EventConversationClaimed = "conversation_claimed"
	EventTyping              = "typing"
	EventError               = "error"
)

// Frame is the wire format in both directions: an event name plus its payload.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Broadcaster is what the mutation paths see: fire-and-forget fan-out into a
// conversation's room.
type Broadcaster interface {
	Broadcast(conversationID string, event string, data interface{})
}

type membership struct {
	client         *Client
	conversationID string
}

type delivery struct {
	conversationID string
	payload        []byte
	// from, when set, is excluded from delivery and must itself be a member
	// of the room (typing relay).
	from *Client
}

// Hub maps conversation ids to the sessions subscribed to them. All room
// state is owned by the Run goroutine; everything else talks to it over
// channels, so no locking is needed.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	join       chan membership
	leave      chan membership
	broadcast  chan delivery
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan delivery, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for _, set := range h.rooms {
				for client := range set {
					h.drop(client)
				}
			}
			h.rooms = make(map[string]map[*Client]struct{})
			return
		case client := <-h.register:
			client.rooms = make(map[string]struct{})
		case client := <-h.unregister:
			h.drop(client)
		case m := <-h.join:
			set, ok := h.rooms[m.conversationID]
			if !ok {
				set = make(map[*Client]struct{})
				h.rooms[m.conversationID] = set
			}
			set[m.client] = struct{}{}
			if m.client.rooms != nil {
				m.client.rooms[m.conversationID] = struct{}{}
			}
		case m := <-h.leave:
			h.removeFromRoom(m.client, m.conversationID)
		case d := <-h.broadcast:
			h.deliver(d)
		}
	}
}

func (h *Hub) Stop() {
	if h == nil {
		return
	}
	close(h.done)
}

func (h *Hub) Register(client *Client) {
	if h == nil {
		return
	}
	select {
	case h.register <- client:
	case <-h.done:
	}
}

func (h *Hub) Unregister(client *Client) {
	if h == nil {
		return
	}
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) Join(client *Client, conversationID string) {
	if h == nil {
		return
	}
	select {
	case h.join <- membership{client: client, conversationID: conversationID}:
	case <-h.done:
	}
}

func (h *Hub) Leave(client *Client, conversationID string) {
	if h == nil {
		return
	}
	select {
	case h.leave <- membership{client: client, conversationID: conversationID}:
	case <-h.done:
	}
}

// Broadcast delivers an event to every session in the conversation's room.
// A nil hub or an empty room is a no-op, never an error.
func (h *Hub) Broadcast(conversationID string, event string, data interface{}) {
	h.send(conversationID, event, data, nil)
}

// Relay is Broadcast on behalf of a connected session: the sender is excluded
// from delivery and must be a member of the room for anything to go out.
func (h *Hub) Relay(from *Client, conversationID string, event string, data interface{}) {
	h.send(conversationID, event, data, from)
}

func (h *Hub) send(conversationID string, event string, data interface{}, from *Client) {
	if h == nil {
		return
	}

	payload, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		utils.LogError("hub: encode frame", err, map[string]interface{}{
			"event":           event,
			"conversation_id": conversationID,
		})
		return
	}

	select {
	case h.broadcast <- delivery{conversationID: conversationID, payload: payload, from: from}:
	case <-h.done:
	}
}

func (h *Hub) deliver(d delivery) {
	set, ok := h.rooms[d.conversationID]
	if !ok {
		return
	}

	if d.from != nil {
		if _, member := d.from.rooms[d.conversationID]; !member {
			return
		}
	}

	for client := range set {
		if client == d.from {
			continue
		}
		select {
		case client.send <- d.payload:
		default:
			// Slow consumer: drop it rather than stall the loop.
			h.drop(client)
		}
	}
}

func (h *Hub) removeFromRoom(client *Client, conversationID string) {
	set, ok := h.rooms[conversationID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.rooms, conversationID)
	}
	if client.rooms != nil {
		delete(client.rooms, conversationID)
	}
}

func (h *Hub) drop(client *Client) {
	if client.rooms == nil {
		return
	}
	for conversationID := range client.rooms {
		set, ok := h.rooms[conversationID]
		if !ok {
			continue
		}
		delete(set, client)
		if len(set) == 0 {
			delete(h.rooms, conversationID)
		}
	}
	client.rooms = nil
	client.shutdown()
}
