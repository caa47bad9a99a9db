package packet

import (
	"sync"
	"time"
)

// Usage reports a peer's recent outbound byte consumption against its budget.
type Usage struct {
	PeerID       uint8
	BytesSent    int64
	LastSentAt   time.Time
	TokensLeft   float64
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
	usage      Usage
}

// Budget enforces a per-peer outbound byte rate using a token-bucket,
// so a stalled peer cannot be flooded past its negotiated packet allowance
// while bursts of queued events still drain promptly once acknowledged.
type Budget struct {
	mu                sync.Mutex
	targetBytesPerSec float64
	burstBytes        float64
	clock             func() time.Time
	buckets           map[uint8]*bucket
}

// NewBudget constructs a Budget allowing targetBytesPerSecond of sustained
// throughput per peer, with bursts capped at burstBytes.
func NewBudget(targetBytesPerSecond, burstBytes int, clock func() time.Time) *Budget {
	if clock == nil {
		clock = time.Now
	}
	if burstBytes <= 0 {
		burstBytes = targetBytesPerSecond
	}
	return &Budget{
		targetBytesPerSec: float64(targetBytesPerSecond),
		burstBytes:        float64(burstBytes),
		clock:             clock,
		buckets:           make(map[uint8]*bucket),
	}
}

// Allow reports whether payloadBytes may be sent for peerID right now,
// consuming tokens from its bucket when permitted.
func (b *Budget) Allow(peerID uint8, payloadBytes int) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.clock()
	bk := b.buckets[peerID]
	if bk == nil {
		bk = &bucket{tokens: b.burstBytes, lastRefill: now}
		b.buckets[peerID] = bk
	}
	b.replenish(bk, now)

	cost := float64(payloadBytes)
	if bk.tokens < cost {
		return false
	}
	bk.tokens -= cost
	bk.usage = Usage{PeerID: peerID, BytesSent: bk.usage.BytesSent + int64(payloadBytes), LastSentAt: now, TokensLeft: bk.tokens}
	return true
}

// Forget discards bookkeeping for a peer that has disconnected.
func (b *Budget) Forget(peerID uint8) {
	if b == nil {
		return
	}
	b.mu.Lock()
	delete(b.buckets, peerID)
	b.mu.Unlock()
}

// SnapshotUsage returns a copy of the last recorded usage for each tracked peer.
func (b *Budget) SnapshotUsage() map[uint8]Usage {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint8]Usage, len(b.buckets))
	for id, bk := range b.buckets {
		out[id] = bk.usage
	}
	return out
}

func (b *Budget) replenish(bk *bucket, now time.Time) {
	elapsed := now.Sub(bk.lastRefill)
	if elapsed <= 0 {
		return
	}
	bk.tokens += elapsed.Seconds() * b.targetBytesPerSec
	if bk.tokens > b.burstBytes {
		bk.tokens = b.burstBytes
	}
	bk.lastRefill = now
}
