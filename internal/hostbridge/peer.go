// Package hostbridge carries rollback wire packets over WebSocket
// connections: one goroutine pair per peer pumps binary frames in and out,
// enforcing read limits, keepalive pings, and write deadlines the way a
// production WebSocket server has to.
package hostbridge

import (
	"errors"
	"net"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bloopgames/rollback/internal/logging"
)

const (
	writeWait         = 10 * time.Second
	pingInterval      = 15 * time.Second
	pongWaitMultiplier = 2
	sendQueueDepth    = 256
)

// ErrPeerClosed is returned by Send once a peer's read pump has exited, and
// also when the peer's send queue is full.
var ErrPeerClosed = errors.New("hostbridge: peer connection closed")

// Upgrader performs the HTTP-to-WebSocket handshake. It is a thin wrapper so
// callers can share one websocket.Upgrader across every peer connection.
type Upgrader = websocket.Upgrader

// Peer pumps binary rollback packets to and from a single WebSocket
// connection. Inbound frames are delivered to OnPacket; outbound frames are
// queued through Send and drained by the write pump.
type Peer struct {
	ID       uint8
	conn     *websocket.Conn
	send     chan []byte
	closed   chan struct{}
	log      *logging.Logger
	onPacket func(peerID uint8, data []byte)
	onClose  func(peerID uint8)

	maxPayloadBytes int64
}

// NewPeer wraps an upgraded WebSocket connection as a pumped rollback peer.
// onPacket is invoked from the read pump goroutine for every inbound binary
// frame; onClose is invoked once, by Run after the read pump exits.
func NewPeer(id uint8, conn *websocket.Conn, maxPayloadBytes int64, onPacket func(peerID uint8, data []byte), onClose func(peerID uint8)) *Peer {
	return &Peer{
		ID:              id,
		conn:            conn,
		send:            make(chan []byte, sendQueueDepth),
		closed:          make(chan struct{}),
		log:             logging.L().With(logging.Int("peer_id", int(id))),
		onPacket:        onPacket,
		onClose:         onClose,
		maxPayloadBytes: maxPayloadBytes,
	}
}

// Send queues a wire packet for delivery. It never blocks on the network:
// when the send queue is full the new packet is dropped and ErrPeerClosed is
// returned, so a stalled peer does not back up the whole engine loop.
func (p *Peer) Send(data []byte) error {
	if p == nil {
		return ErrPeerClosed
	}
	select {
	case <-p.closed:
		return ErrPeerClosed
	default:
	}
	select {
	case p.send <- data:
		return nil
	default:
		return ErrPeerClosed
	}
}

// Run starts the read and write pumps and blocks until the read pump exits;
// it then signals the write pump to stop and closes the connection without
// waiting for the write pump to return.
func (p *Peer) Run() {
	if p == nil {
		return
	}
	if p.maxPayloadBytes > 0 {
		p.conn.SetReadLimit(p.maxPayloadBytes)
	}

	waitDuration := pongWaitMultiplier * pingInterval
	_ = p.conn.SetReadDeadline(time.Now().Add(waitDuration))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	done := make(chan struct{})
	go p.writePump(waitDuration, done)
	p.readPump(waitDuration)
	close(done)

	close(p.closed)
	if p.onClose != nil {
		p.onClose(p.ID)
	}
	_ = p.conn.Close()
}

func (p *Peer) readPump(waitDuration time.Duration) {
	for {
		messageType, msg, err := p.conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				p.log.Warn("read deadline exceeded", logging.Error(err))
			} else if websocket.IsCloseError(err, websocket.CloseMessageTooBig) || errors.Is(err, websocket.ErrReadLimit) {
				p.log.Warn("closing connection due to oversized payload", logging.Error(err))
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.Warn("unexpected websocket close", logging.Error(err))
			} else {
				p.log.Debug("read pump exiting", logging.Error(err))
			}
			return
		}
		if err := p.conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			p.log.Error("failed to extend read deadline", logging.Error(err))
			return
		}
		if messageType != websocket.BinaryMessage {
			p.log.Debug("dropping non-binary frame")
			continue
		}
		if p.onPacket != nil {
			p.onPacket(p.ID, msg)
		}
	}
}

func (p *Peer) writePump(waitDuration time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case data, ok := <-p.send:
			if !ok {
				_ = p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				p.log.Error("failed to set write deadline", logging.Error(err))
				return
			}
			if err := p.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				p.log.Error("write error", logging.Error(err))
				return
			}
		case <-ticker.C:
			if err := p.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				p.log.Warn("ping failure", logging.Error(err))
				return
			}
		}
	}
}
