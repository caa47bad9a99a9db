package hostbridge

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/bloopgames/rollback/internal/logging"
)

// Hub accepts incoming WebSocket connections, assigns each one a peer slot,
// and fans inbound packets out to a single callback so the caller (typically
// the rollback controller's ingestion loop) doesn't need to know about
// connection lifecycle at all.
type Hub struct {
	mu       sync.RWMutex
	upgrader Upgrader
	peers    map[uint8]*Peer
	log      *logging.Logger

	maxPayloadBytes int64
	onPacket        func(peerID uint8, data []byte)
}

// NewHub constructs an empty hub. onPacket is invoked for every inbound
// binary frame from any connected peer.
func NewHub(maxPayloadBytes int64, onPacket func(peerID uint8, data []byte)) *Hub {
	return &Hub{
		upgrader:        Upgrader{},
		peers:           make(map[uint8]*Peer),
		log:             logging.L(),
		maxPayloadBytes: maxPayloadBytes,
		onPacket:        onPacket,
	}
}

// Accept upgrades an HTTP request to a WebSocket connection and starts
// pumping the resulting peer under peerID. It blocks until the connection
// closes, so callers typically invoke it from its own goroutine per request.
func (h *Hub) Accept(peerID uint8, w http.ResponseWriter, r *http.Request) error {
	if h == nil {
		return fmt.Errorf("hostbridge: hub is nil")
	}
	h.mu.Lock()
	if _, exists := h.peers[peerID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("hostbridge: peer slot %d already connected", peerID)
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("hostbridge: upgrade failed: %w", err)
	}

	peer := NewPeer(peerID, conn, h.maxPayloadBytes, h.onPacket, h.forget)
	h.mu.Lock()
	h.peers[peerID] = peer
	h.mu.Unlock()

	peer.Run()
	return nil
}

// Send delivers a packet to a specific connected peer.
func (h *Hub) Send(peerID uint8, data []byte) error {
	if h == nil {
		return fmt.Errorf("hostbridge: hub is nil")
	}
	h.mu.RLock()
	peer := h.peers[peerID]
	h.mu.RUnlock()
	if peer == nil {
		return ErrPeerClosed
	}
	return peer.Send(data)
}

// Broadcast delivers a packet to every connected peer except skip.
func (h *Hub) Broadcast(data []byte, skip uint8) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, peer := range h.peers {
		if id == skip {
			continue
		}
		if err := peer.Send(data); err != nil {
			h.log.Debug("broadcast send skipped", logging.Int("peer_id", int(id)), logging.Error(err))
		}
	}
}

// Connected reports how many peers currently hold an open connection.
func (h *Hub) Connected() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) forget(peerID uint8) {
	h.mu.Lock()
	delete(h.peers, peerID)
	h.mu.Unlock()
}
