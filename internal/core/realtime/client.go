package realtime

import (
	"encoding/json"
	"errors"
	"sync"

	websocket "github.com/gofiber/contrib/websocket"
)

// ErrInvalidConversationID is returned by a JoinAuthorizer when the requested
// id is not a conversation id at all, as opposed to one the session may not
// access.
var ErrInvalidConversationID = errors.New("invalid conversation id")

// JoinAuthorizer decides whether this session may subscribe to a
// conversation's room. A nil error means allowed.
type JoinAuthorizer func(conversationID string) error

// Client is one live websocket session. The rooms set is owned by the hub's
// Run goroutine; the read/write pumps never touch it. The send channel is
// never closed: the done channel ends the write pump instead, so a read pump
// still processing frames after an unregister cannot hit a closed channel.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	id   string
	send chan []byte

	done     chan struct{}
	doneOnce sync.Once

	rooms map[string]struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		id:    id,
		send:  make(chan []byte, 32),
		done:  make(chan struct{}),
		rooms: make(map[string]struct{}),
	}
}

func (c *Client) ID() string {
	return c.id
}

// shutdown ends the write pump. Called by the hub's Run goroutine when the
// client is dropped; safe to call more than once.
func (c *Client) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type typingPayload struct {
	ConversationID string `json:"conversationId"`
	UserName       string `json:"userName"`
	IsTyping       bool   `json:"isTyping"`
}

// TypingEvent is the room-wide typing relay, delivered to everyone except the
// session that produced it.
type TypingEvent struct {
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

// ErrorEvent is emitted to a single session, e.g. on a denied join.
type ErrorEvent struct {
	Message string `json:"message"`
}

// ReadPump consumes control frames until the connection drops. Join requests
// are re-checked against authorize every time: connection-level auth proves
// identity, not per-room access.
func (c *Client) ReadPump(authorize JoinAuthorizer) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(authorize, payload)
	}
}

func (c *Client) handleFrame(authorize JoinAuthorizer, payload []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.writeError("invalid frame")
		return
	}

	switch frame.Event {
	case "join":
		conversationID, ok := decodeConversationID(frame.Data)
		if !ok {
			c.writeError("invalid conversation id")
			return
		}
		if err := authorize(conversationID); err != nil {
			if errors.Is(err, ErrInvalidConversationID) {
				c.writeError("invalid conversation id")
			} else {
				c.writeError("Forbidden: cannot access this conversation")
			}
			return
		}
		c.hub.Join(c, conversationID)

	case "leave":
		conversationID, ok := decodeConversationID(frame.Data)
		if !ok {
			c.writeError("invalid conversation id")
			return
		}
		c.hub.Leave(c, conversationID)

	case "typing":
		var t typingPayload
		if err := json.Unmarshal(frame.Data, &t); err != nil || t.ConversationID == "" {
			c.writeError("invalid typing payload")
			return
		}
		c.hub.Relay(c, t.ConversationID, EventTyping, TypingEvent{
			UserName: t.UserName,
			IsTyping: t.IsTyping,
		})

	default:
		c.writeError("unsupported event")
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeError(message string) {
	select {
	case <-c.done:
		return
	default:
	}

	payload, err := json.Marshal(Frame{Event: EventError, Data: ErrorEvent{Message: message}})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.Unregister(c)
	}
}

func decodeConversationID(raw json.RawMessage) (string, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil || id == "" {
		return "", false
	}
	return id, true
}
