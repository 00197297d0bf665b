package realtime

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func newTestClient(t *testing.T, hub *Hub, id string) *Client {
	t.Helper()
	client := NewClient(hub, nil, id)
	hub.Register(client)
	return client
}

func recvFrame(t *testing.T, c *Client) wireFrame {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed")
		}
		var frame wireFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("expected a frame, got none")
		return wireFrame{}
	}
}

func expectSilence(t *testing.T, c *Client) {
	t.Helper()
	select {
	case payload := <-c.send:
		t.Fatalf("unexpected frame: %s", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBroadcastReachesEveryRoomMember(t *testing.T) {
	hub := newTestHub(t)
	agent := newTestClient(t, hub, "agent-1")
	lead := newTestClient(t, hub, "lead-1")
	other := newTestClient(t, hub, "agent-2")

	hub.Join(agent, "conv-1")
	hub.Join(lead, "conv-1")
	hub.Join(other, "conv-2")

	hub.Broadcast("conv-1", EventNewMessage, map[string]string{"content": "hello"})

	for _, c := range []*Client{agent, lead} {
		frame := recvFrame(t, c)
		if frame.Event != EventNewMessage {
			t.Fatalf("expected %s, got %s", EventNewMessage, frame.Event)
		}
	}
	expectSilence(t, other)
}

func TestBroadcastToEmptyRoomIsNoOp(t *testing.T) {
	hub := newTestHub(t)
	member := newTestClient(t, hub, "agent-1")
	hub.Join(member, "conv-1")

	hub.Broadcast("nobody-here", EventAIUpdate, map[string]string{"summary": "x"})
	expectSilence(t, member)

	// Hub still works afterwards.
	hub.Broadcast("conv-1", EventAIUpdate, map[string]string{"summary": "x"})
	if frame := recvFrame(t, member); frame.Event != EventAIUpdate {
		t.Fatalf("expected %s, got %s", EventAIUpdate, frame.Event)
	}
}

func TestRelayExcludesSender(t *testing.T) {
	hub := newTestHub(t)
	sender := newTestClient(t, hub, "agent-1")
	receiver := newTestClient(t, hub, "lead-1")

	hub.Join(sender, "conv-1")
	hub.Join(receiver, "conv-1")

	hub.Relay(sender, "conv-1", EventTyping, TypingEvent{UserName: "Dina", IsTyping: true})

	frame := recvFrame(t, receiver)
	if frame.Event != EventTyping {
		t.Fatalf("expected %s, got %s", EventTyping, frame.Event)
	}
	var typing TypingEvent
	if err := json.Unmarshal(frame.Data, &typing); err != nil {
		t.Fatalf("decode typing payload: %v", err)
	}
	if typing.UserName != "Dina" || !typing.IsTyping {
		t.Fatalf("unexpected typing payload: %+v", typing)
	}
	expectSilence(t, sender)
}

func TestRelayRequiresRoomMembership(t *testing.T) {
	hub := newTestHub(t)
	outsider := newTestClient(t, hub, "agent-1")
	member := newTestClient(t, hub, "lead-1")
	hub.Join(member, "conv-1")

	hub.Relay(outsider, "conv-1", EventTyping, TypingEvent{UserName: "Eve", IsTyping: true})
	expectSilence(t, member)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(t, hub, "agent-1")
	hub.Join(client, "conv-1")
	hub.Leave(client, "conv-1")

	hub.Broadcast("conv-1", EventNewMessage, map[string]string{"content": "hi"})
	expectSilence(t, client)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(t, hub, "agent-1")
	hub.Join(client, "conv-1")

	hub.Unregister(client)
	waitDone(t, client)

	hub.Broadcast("conv-1", EventNewMessage, map[string]string{"content": "hi"})
	expectSilence(t, client)
}

func waitDone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("client not shut down after unregister")
	}
}

func denyJoin(err error) JoinAuthorizer {
	return func(string) error { return err }
}

// A read pump can still be processing frames after the hub has dropped the
// session (unregistered, or evicted as a slow consumer). Error replies on
// that path must be a no-op, not a crash.
func TestErrorFrameAfterDropIsSafe(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(t, hub, "agent-1")
	hub.Join(client, "conv-1")

	hub.Unregister(client)
	waitDone(t, client)

	client.handleFrame(denyJoin(errors.New("nope")), []byte(`{"event":"join","data":"conv-1"}`))
	client.handleFrame(nil, []byte(`not json`))
	expectSilence(t, client)
}

func TestDeniedJoinReportsForbidden(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(t, hub, "agent-1")

	client.handleFrame(denyJoin(errors.New("nope")), []byte(`{"event":"join","data":"conv-1"}`))

	frame := recvFrame(t, client)
	if frame.Event != EventError {
		t.Fatalf("expected %s, got %s", EventError, frame.Event)
	}
	var e ErrorEvent
	if err := json.Unmarshal(frame.Data, &e); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if e.Message != "Forbidden: cannot access this conversation" {
		t.Fatalf("unexpected message: %q", e.Message)
	}
}

func TestMalformedJoinIDReportsInvalidID(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(t, hub, "agent-1")

	client.handleFrame(denyJoin(ErrInvalidConversationID), []byte(`{"event":"join","data":"not-a-uuid"}`))

	frame := recvFrame(t, client)
	var e ErrorEvent
	if err := json.Unmarshal(frame.Data, &e); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if e.Message != "invalid conversation id" {
		t.Fatalf("unexpected message: %q", e.Message)
	}
}

func TestNilGatewayAndHubAreNoOps(t *testing.T) {
	var gateway *Gateway
	gateway.Broadcast("conv-1", EventNewMessage, "x")

	var hub *Hub
	hub.Broadcast("conv-1", EventNewMessage, "x")

	// A gateway over a live hub but no bus stays local.
	live := newTestHub(t)
	member := newTestClient(t, live, "agent-1")
	live.Join(member, "conv-1")

	g := NewGateway(live, nil)
	g.Broadcast("conv-1", EventNewMessage, map[string]string{"content": "hi"})
	if frame := recvFrame(t, member); frame.Event != EventNewMessage {
		t.Fatalf("expected %s, got %s", EventNewMessage, frame.Event)
	}
}
