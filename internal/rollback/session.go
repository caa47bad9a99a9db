// Package rollback implements the session lifecycle and the per-frame
// rollback controller: assembling local and remote inputs, deciding when a
// rollback is required, and driving resimulation against a user-supplied
// step function.
package rollback

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bloopgames/rollback/internal/corestate"
)

const (
	envSessionID     = "ROLLBACK_SESSION_ID"
	envSessionMin    = "ROLLBACK_SESSION_MIN_PEERS"
	envSessionMax    = "ROLLBACK_SESSION_MAX_PEERS"
)

var (
	// ErrInvalidPeerID is returned when a join request omits the peer identifier.
	ErrInvalidPeerID = errors.New("peer id must not be empty")
	// ErrSessionFull indicates the session already holds its configured peer capacity.
	ErrSessionFull = errors.New("session capacity reached")
	// ErrInvalidCapacity is returned when capacity updates violate basic invariants.
	ErrInvalidCapacity = errors.New("invalid session capacity configuration")
)

// Capacity expresses the configured peer limits for a session.
type Capacity struct {
	MinPeers int `json:"min_peers"`
	MaxPeers int `json:"max_peers"`
}

// Snapshot captures a stable view of the session state for observers.
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	Capacity   Capacity          `json:"capacity"`
	ActivePeers []string         `json:"active_peers"`
	Status     corestate.NetStatus `json:"status"`
}

// SessionOption configures optional Session behaviour at construction time.
type SessionOption func(*Session)

// Session maintains the lifecycle of a rollback match: offline, local, the
// join-pending handshake, connected play, and disconnection.
type Session struct {
	mu sync.RWMutex

	id        string
	capacity  Capacity
	peers     map[string]time.Time
	status    corestate.NetStatus
	now       func() time.Time
	envLookup func(string) string

	idConfigured  bool
	capConfigured bool
}

// WithSessionClock overrides the default wall-clock time source.
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithSessionEnvLookup injects a custom environment variable lookup mechanism.
func WithSessionEnvLookup(lookup func(string) string) SessionOption {
	return func(s *Session) {
		s.envLookup = lookup
	}
}

// WithSessionID sets the identifier used for the persistent session.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return
		}
		s.id = trimmed
		s.idConfigured = true
	}
}

// WithSessionCapacity configures the session capacity explicitly, bypassing
// environment parsing.
func WithSessionCapacity(capacity Capacity) SessionOption {
	return func(s *Session) {
		s.capacity = capacity
		s.capConfigured = true
	}
}

// NewSession constructs a session using environment defaults when available.
func NewSession(opts ...SessionOption) (*Session, error) {
	session := &Session{
		peers:     make(map[string]time.Time),
		status:    corestate.NetStatusOffline,
		now:       time.Now,
		envLookup: os.Getenv,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(session)
		}
	}
	if err := session.applyEnvironment(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(session.id) == "" {
		session.id = session.defaultIdentifier()
	}
	if err := session.validateCapacity(session.capacity); err != nil {
		return nil, err
	}
	if session.capacity.MaxPeers > corestate.MaxPlayers {
		return nil, fmt.Errorf("%w: max peers %d exceeds engine limit %d", ErrInvalidCapacity, session.capacity.MaxPeers, corestate.MaxPlayers)
	}
	return session, nil
}

// Join registers a peer with the session, enforcing capacity constraints and
// transitioning the status to join-pending on the first peer.
func (s *Session) Join(peerID string) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("session is nil")
	}
	trimmed := strings.TrimSpace(peerID)
	if trimmed == "" {
		return Snapshot{}, ErrInvalidPeerID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.peers[trimmed]; !exists {
		if s.capacity.MaxPeers > 0 && len(s.peers) >= s.capacity.MaxPeers {
			return Snapshot{}, ErrSessionFull
		}
	}
	s.peers[trimmed] = s.now()
	if s.status == corestate.NetStatusOffline || s.status == corestate.NetStatusLocal {
		s.status = corestate.NetStatusJoinPending
	}
	if s.capacity.MinPeers > 0 && len(s.peers) >= s.capacity.MinPeers {
		s.status = corestate.NetStatusConnected
	}
	return s.snapshotLocked(), nil
}

// Leave removes a peer from the session while preserving overall state.
func (s *Session) Leave(peerID string) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	trimmed := strings.TrimSpace(peerID)
	if trimmed == "" {
		return s.Snapshot()
	}
	s.mu.Lock()
	delete(s.peers, trimmed)
	if len(s.peers) == 0 {
		s.status = corestate.NetStatusDisconnected
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()
	return snapshot
}

// Snapshot returns a read-only view of the current session state.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// AdjustCapacity safely mutates the capacity bounds while guarding active peers.
func (s *Session) AdjustCapacity(minPeers, maxPeers int) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, fmt.Errorf("session is nil")
	}
	proposed := Capacity{MinPeers: minPeers, MaxPeers: maxPeers}
	if err := s.validateCapacity(proposed); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if proposed.MaxPeers > 0 && len(s.peers) > proposed.MaxPeers {
		return Snapshot{}, fmt.Errorf("%w: %d active peers exceed max %d", ErrInvalidCapacity, len(s.peers), proposed.MaxPeers)
	}
	s.capacity = proposed
	return s.snapshotLocked(), nil
}

func (s *Session) applyEnvironment() error {
	if s == nil {
		return nil
	}
	lookup := s.envLookup
	if lookup == nil {
		return nil
	}
	if !s.idConfigured {
		if id := strings.TrimSpace(lookup(envSessionID)); id != "" {
			s.id = id
			s.idConfigured = true
		}
	}
	if s.capConfigured {
		return nil
	}
	var minSet, maxSet bool
	if raw := strings.TrimSpace(lookup(envSessionMin)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidCapacity, envSessionMin, raw)
		}
		s.capacity.MinPeers = value
		minSet = true
	}
	if raw := strings.TrimSpace(lookup(envSessionMax)); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidCapacity, envSessionMax, raw)
		}
		s.capacity.MaxPeers = value
		maxSet = true
	}
	if minSet || maxSet {
		s.capConfigured = true
	}
	return nil
}

func (s *Session) snapshotLocked() Snapshot {
	snapshot := Snapshot{SessionID: s.id, Capacity: s.capacity, Status: s.status}
	if len(s.peers) == 0 {
		return snapshot
	}
	snapshot.ActivePeers = make([]string, 0, len(s.peers))
	for id := range s.peers {
		snapshot.ActivePeers = append(snapshot.ActivePeers, id)
	}
	sort.Strings(snapshot.ActivePeers)
	return snapshot
}

func (s *Session) defaultIdentifier() string {
	timestamp := ""
	if s.now != nil {
		timestamp = s.now().UTC().Format("session-20060102T150405")
	}
	if strings.TrimSpace(timestamp) == "" {
		return "session"
	}
	return timestamp
}

func (s *Session) validateCapacity(capacity Capacity) error {
	if capacity.MinPeers < 0 {
		return fmt.Errorf("%w: minimum peers must be non-negative", ErrInvalidCapacity)
	}
	if capacity.MaxPeers < 0 {
		return fmt.Errorf("%w: maximum peers must be non-negative", ErrInvalidCapacity)
	}
	if capacity.MaxPeers > 0 && capacity.MaxPeers < capacity.MinPeers {
		return fmt.Errorf("%w: max %d is less than min %d", ErrInvalidCapacity, capacity.MaxPeers, capacity.MinPeers)
	}
	return nil
}
