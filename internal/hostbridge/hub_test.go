package hostbridge

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubRoundTripsBinaryFrames(t *testing.T) {
	received := make(chan []byte, 1)
	hub := NewHub(0, func(peerID uint8, data []byte) {
		received <- append([]byte(nil), data...)
	})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Accept(1, w, r); err != nil {
			t.Errorf("Accept: %v", err)
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	select {
	case data := <-received:
		if string(data) != "hello" {
			t.Fatalf("received = %q, want %q", data, "hello")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound frame")
	}

	if hub.Connected() != 1 {
		t.Fatalf("Connected() = %d, want 1", hub.Connected())
	}

	if err := hub.Send(1, []byte("world")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(msg) != "world" {
		t.Fatalf("client received = %q, want %q", msg, "world")
	}
}

func TestHubSendToUnknownPeerFails(t *testing.T) {
	hub := NewHub(0, nil)
	if err := hub.Send(7, []byte("x")); err != ErrPeerClosed {
		t.Fatalf("Send err = %v, want ErrPeerClosed", err)
	}
}
