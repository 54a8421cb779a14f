package feed

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for hub.Subscribers() != want {
		select {
		case <-deadline:
			t.Fatalf("subscriber count %d, want %d", hub.Subscribers(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.Publish(EventTrade, map[string]interface{}{"direction": "buy", "amount": 10.0})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(frame, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != EventTrade {
		t.Errorf("event type %q, want %q", event.Type, EventTrade)
	}
	if event.At == 0 {
		t.Error("event should carry a timestamp")
	}
	payload, ok := event.Payload.(map[string]interface{})
	if !ok || payload["direction"] != "buy" {
		t.Errorf("unexpected payload: %+v", event.Payload)
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	first := dialHub(t, server)
	defer first.Close()
	second := dialHub(t, server)
	defer second.Close()
	waitForSubscribers(t, hub, 2)

	hub.Publish(EventPhaseChange, "TRADING")

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var event Event
		if err := json.Unmarshal(frame, &event); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if event.Type != EventPhaseChange {
			t.Errorf("event type %q, want %q", event.Type, EventPhaseChange)
		}
	}
}

func TestHub_DisconnectPrunesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)
}

func TestHub_CloseDisconnectsAll(t *testing.T) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dialHub(t, server)
	defer conn.Close()
	waitForSubscribers(t, hub, 1)

	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	if hub.Subscribers() != 0 {
		t.Errorf("closed hub still has %d subscribers", hub.Subscribers())
	}

	// Publishing after close is a harmless no-op.
	hub.Publish(EventRunStatus, "STOPPED")
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	// Must not block or panic.
	hub.Publish(EventMessage, "hello")
	if hub.Subscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Subscribers())
	}
}
