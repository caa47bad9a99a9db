// Package adminhttp exposes operational HTTP endpoints for a rollback
// engine process: liveness/readiness probes, Prometheus-style metrics, and
// admin-token-gated controls for triggering an archive dump or adjusting
// session capacity at runtime.
package adminhttp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bloopgames/rollback/internal/archive"
	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/logging"
	"github.com/bloopgames/rollback/internal/packet"
	"github.com/bloopgames/rollback/internal/rollback"
	"github.com/bloopgames/rollback/internal/scheduler"
)

// ReadinessProvider exposes process state required for readiness checks.
type ReadinessProvider interface {
	SnapshotClientCounts() (clients, pending int)
	StartupError() error
	Uptime() time.Duration
}

// StatsFunc returns cumulative broadcast and client statistics.
type StatsFunc func() (broadcasts, clients int)

// ArchiveDumper triggers an out-of-band archive flush and returns the
// directory the archive bundle lives in.
type ArchiveDumper interface {
	DumpArchive(ctx context.Context) (string, error)
}

// ArchiveDumperFunc adapts a function into an ArchiveDumper.
type ArchiveDumperFunc func(ctx context.Context) (string, error)

// DumpArchive implements ArchiveDumper.
func (f ArchiveDumperFunc) DumpArchive(ctx context.Context) (string, error) { return f(ctx) }

// RateLimiter gates how frequently sensitive operations may be invoked.
type RateLimiter interface {
	Allow() bool
}

// SessionAdmin exposes the minimal surface required to administrate
// session capacity at runtime.
type SessionAdmin interface {
	Snapshot() rollback.Snapshot
	AdjustCapacity(minPeers, maxPeers int) (rollback.Snapshot, error)
}

// RollbackStatsProvider exposes the rollback controller's rolling counters
// for the /status endpoint.
type RollbackStatsProvider interface {
	RollbackStats() corestate.RollbackStats
	Frame() uint32
	ConfirmedFrame() uint32
}

// Options configures the HandlerSet.
type Options struct {
	Logger        *logging.Logger
	Readiness     ReadinessProvider
	Stats         StatsFunc
	Budget        *packet.Budget
	TickMonitor   *scheduler.TickMonitor
	Archive       ArchiveDumper
	AdminToken    string
	RateLimiter   RateLimiter
	TimeSource    func() time.Time
	ArchiveWriter func() archive.Stats
	Storage       func() archive.StorageStats
	Session       SessionAdmin
	Rollback      RollbackStatsProvider
}

// HandlerSet bundles the engine's operational handlers.
type HandlerSet struct {
	logger        *logging.Logger
	readiness     ReadinessProvider
	stats         StatsFunc
	budget        *packet.Budget
	tickMonitor   *scheduler.TickMonitor
	archive       ArchiveDumper
	adminToken    string
	rateLimiter   RateLimiter
	now           func() time.Time
	archiveWriter func() archive.Stats
	storage       func() archive.StorageStats
	session       SessionAdmin
	rollback      RollbackStatsProvider
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:        logger,
		readiness:     opts.Readiness,
		stats:         opts.Stats,
		budget:        opts.Budget,
		tickMonitor:   opts.TickMonitor,
		archive:       opts.Archive,
		adminToken:    strings.TrimSpace(opts.AdminToken),
		rateLimiter:   opts.RateLimiter,
		now:           now,
		archiveWriter: opts.ArchiveWriter,
		storage:       opts.Storage,
		session:       opts.Session,
		rollback:      opts.Rollback,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/archive/dump", h.ArchiveDumpHandler())
	if h.session != nil {
		mux.HandleFunc("/admin/session/capacity", h.SessionCapacityHandler())
	}
	if h.rollback != nil {
		mux.HandleFunc("/status", h.StatusHandler())
	}
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports engine readiness, including client counts and startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status         string  `json:"status"`
		Message        string  `json:"message,omitempty"`
		UptimeSeconds  float64 `json:"uptime_seconds"`
		Clients        int     `json:"clients"`
		PendingClients int     `json:"pending_clients"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			clients, pending := h.readiness.SnapshotClientCounts()
			resp.Clients = clients
			resp.PendingClients = pending
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// StatusHandler reports the rollback controller's frame bookkeeping and
// rolling rollback/drop counters, unauthenticated like the other read-only
// probes: it exposes counters, not session contents.
func (h *HandlerSet) StatusHandler() http.HandlerFunc {
	type dropCounters struct {
		ConfirmedFrameRegression uint32 `json:"confirmed_frame_regression"`
		RingOverflow             uint32 `json:"ring_overflow"`
		Stale                    uint32 `json:"stale"`
	}
	type response struct {
		Frame             uint32       `json:"frame"`
		ConfirmedFrame    uint32       `json:"confirmed_frame"`
		LastRollbackDepth uint32       `json:"last_rollback_depth"`
		TotalRollbacks    uint32       `json:"total_rollbacks"`
		FramesResimulated uint64       `json:"frames_resimulated"`
		PacketsDropped    uint32       `json:"packets_dropped"`
		Drops             dropCounters `json:"drops"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.rollback == nil {
			http.Error(w, "rollback stats unavailable", http.StatusServiceUnavailable)
			return
		}
		stats := h.rollback.RollbackStats()
		writeJSON(w, http.StatusOK, response{
			Frame:             h.rollback.Frame(),
			ConfirmedFrame:    h.rollback.ConfirmedFrame(),
			LastRollbackDepth: stats.LastRollbackDepth,
			TotalRollbacks:    stats.TotalRollbacks,
			FramesResimulated: stats.FramesResimulated,
			PacketsDropped:    stats.PacketsDropped,
			Drops: dropCounters{
				ConfirmedFrameRegression: stats.Drops.ConfirmedFrameRegression,
				RingOverflow:             stats.Drops.RingOverflow,
				Stale:                    stats.Drops.Stale,
			},
		})
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		broadcasts, clients := h.metricsStats()
		pending, uptime := h.pendingAndUptime()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP rollback_uptime_seconds Process uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE rollback_uptime_seconds gauge\n")
		fmt.Fprintf(w, "rollback_uptime_seconds %.0f\n", uptime)

		fmt.Fprintf(w, "# HELP rollback_clients Current connected peers.\n")
		fmt.Fprintf(w, "# TYPE rollback_clients gauge\n")
		fmt.Fprintf(w, "rollback_clients %d\n", clients)

		fmt.Fprintf(w, "# HELP rollback_pending_clients Pending handshakes awaiting upgrade.\n")
		fmt.Fprintf(w, "# TYPE rollback_pending_clients gauge\n")
		fmt.Fprintf(w, "rollback_pending_clients %d\n", pending)

		fmt.Fprintf(w, "# HELP rollback_broadcasts_total Total broadcast payloads delivered.\n")
		fmt.Fprintf(w, "# TYPE rollback_broadcasts_total counter\n")
		fmt.Fprintf(w, "rollback_broadcasts_total %d\n", broadcasts)

		if h.tickMonitor != nil {
			snap := h.tickMonitor.Snapshot()
			fmt.Fprintf(w, "# HELP rollback_tick_average_seconds Average simulation step duration.\n")
			fmt.Fprintf(w, "# TYPE rollback_tick_average_seconds gauge\n")
			fmt.Fprintf(w, "rollback_tick_average_seconds %.6f\n", snap.Average.Seconds())
			fmt.Fprintf(w, "# HELP rollback_tick_max_seconds Worst observed simulation step duration.\n")
			fmt.Fprintf(w, "# TYPE rollback_tick_max_seconds gauge\n")
			fmt.Fprintf(w, "rollback_tick_max_seconds %.6f\n", snap.Max.Seconds())
			fmt.Fprintf(w, "# HELP rollback_tick_fps Average frames per second implied by the sampled step duration.\n")
			fmt.Fprintf(w, "# TYPE rollback_tick_fps gauge\n")
			fmt.Fprintf(w, "rollback_tick_fps %.2f\n", snap.AverageFPS())
		}
		if h.budget != nil {
			usage := h.budget.SnapshotUsage()
			if len(usage) > 0 {
				fmt.Fprintf(w, "# HELP rollback_packet_bytes_sent_total Total outbound packet bytes sent per peer.\n")
				fmt.Fprintf(w, "# TYPE rollback_packet_bytes_sent_total counter\n")
				for peerID, sample := range usage {
					fmt.Fprintf(w, "rollback_packet_bytes_sent_total{peer=\"%d\"} %d\n", peerID, sample.BytesSent)
				}
				fmt.Fprintf(w, "# HELP rollback_packet_budget_tokens_remaining Remaining byte-budget tokens per peer.\n")
				fmt.Fprintf(w, "# TYPE rollback_packet_budget_tokens_remaining gauge\n")
				for peerID, sample := range usage {
					fmt.Fprintf(w, "rollback_packet_budget_tokens_remaining{peer=\"%d\"} %.2f\n", peerID, sample.TokensLeft)
				}
			}
		}
		if h.archiveWriter != nil {
			stats := h.archiveWriter()
			fmt.Fprintf(w, "# HELP rollback_archive_pending_dumps Buffered tape dumps awaiting flush.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_pending_dumps gauge\n")
			fmt.Fprintf(w, "rollback_archive_pending_dumps %d\n", stats.PendingDumps)
			fmt.Fprintf(w, "# HELP rollback_archive_pending_bytes Buffered tape dump payload size in bytes.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_pending_bytes gauge\n")
			fmt.Fprintf(w, "rollback_archive_pending_bytes %d\n", stats.PendingBytes)
			fmt.Fprintf(w, "# HELP rollback_archive_dumps_total Tape dumps flushed successfully.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_dumps_total counter\n")
			fmt.Fprintf(w, "rollback_archive_dumps_total %d\n", stats.Dumps)
		}
		if h.storage != nil {
			storage := h.storage()
			//1.- Surface retained artefact counts so operators can inspect cleanup effectiveness.
			fmt.Fprintf(w, "# HELP rollback_archive_storage_sessions Archive bundles currently retained.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_storage_sessions gauge\n")
			fmt.Fprintf(w, "rollback_archive_storage_sessions %d\n", storage.Sessions)
			fmt.Fprintf(w, "# HELP rollback_archive_storage_headers Archive header documents currently present.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_storage_headers gauge\n")
			fmt.Fprintf(w, "rollback_archive_storage_headers %d\n", storage.Headers)
			fmt.Fprintf(w, "# HELP rollback_archive_storage_bytes Total on-disk size of retained archives in bytes.\n")
			fmt.Fprintf(w, "# TYPE rollback_archive_storage_bytes gauge\n")
			fmt.Fprintf(w, "rollback_archive_storage_bytes %d\n", storage.Bytes)
			if !storage.LastSweep.IsZero() {
				//2.- Publish the last sweep time so dashboards can detect stalled cleanup loops.
				fmt.Fprintf(w, "# HELP rollback_archive_storage_last_sweep_timestamp_seconds Unix timestamp of the last retention sweep.\n")
				fmt.Fprintf(w, "# TYPE rollback_archive_storage_last_sweep_timestamp_seconds gauge\n")
				fmt.Fprintf(w, "rollback_archive_storage_last_sweep_timestamp_seconds %d\n", storage.LastSweep.Unix())
			}
		}
	}
}

// ArchiveDumpHandler authorises and triggers an archive dump.
func (h *HandlerSet) ArchiveDumpHandler() http.HandlerFunc {
	type response struct {
		Status   string `json:"status"`
		Location string `json:"location,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.logger.With(
			logging.String("handler", "archive_dump"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.adminToken == "" {
			reqLogger.Warn("archive dump denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			reqLogger.Warn("archive dump denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if h.rateLimiter != nil && !h.rateLimiter.Allow() {
			reqLogger.Warn("archive dump denied: rate limit exceeded")
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		if h.archive == nil {
			reqLogger.Warn("archive dump denied: no dumper configured")
			http.Error(w, "archive dumping is unavailable", http.StatusServiceUnavailable)
			return
		}
		location, err := h.archive.DumpArchive(r.Context())
		if err != nil {
			reqLogger.Error("archive dump trigger failed", logging.Error(err))
			http.Error(w, "failed to trigger archive dump", http.StatusInternalServerError)
			return
		}
		reqLogger.Info("archive dump triggered")
		writeJSON(w, http.StatusAccepted, response{Status: "accepted", Location: location})
	}
}

// SessionCapacityHandler authorises and applies runtime session capacity adjustments.
func (h *HandlerSet) SessionCapacityHandler() http.HandlerFunc {
	type request struct {
		MinPeers *int `json:"min_peers"`
		MaxPeers *int `json:"max_peers"`
	}
	type response struct {
		Status      string             `json:"status"`
		SessionID   string             `json:"session_id"`
		Capacity    rollback.Capacity  `json:"capacity"`
		ActivePeers []string           `json:"active_peers"`
		Message     string             `json:"message,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		logger := h.logger.With(
			logging.String("handler", "session_capacity"),
			logging.String("remote_addr", r.RemoteAddr),
		)
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.session == nil {
			http.Error(w, "session management unavailable", http.StatusServiceUnavailable)
			return
		}
		if h.adminToken == "" {
			logger.Warn("capacity adjustment denied: admin auth disabled")
			http.Error(w, "admin authentication not configured", http.StatusForbidden)
			return
		}
		if !h.authorise(r) {
			logger.Warn("capacity adjustment denied: unauthorized request")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("capacity adjustment denied: invalid payload", logging.Error(err))
			http.Error(w, "invalid request payload", http.StatusBadRequest)
			return
		}
		current := h.session.Snapshot()
		minPeers := current.Capacity.MinPeers
		maxPeers := current.Capacity.MaxPeers
		//1.- Apply the request overrides while defaulting unspecified fields to the current snapshot.
		if req.MinPeers != nil {
			minPeers = *req.MinPeers
		}
		if req.MaxPeers != nil {
			maxPeers = *req.MaxPeers
		}
		updated, err := h.session.AdjustCapacity(minPeers, maxPeers)
		if err != nil {
			logger.Warn("capacity adjustment denied: invalid configuration", logging.Error(err))
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Info("session capacity adjusted", logging.Int("min_peers", updated.Capacity.MinPeers), logging.Int("max_peers", updated.Capacity.MaxPeers))
		writeJSON(w, http.StatusOK, response{Status: "ok", SessionID: updated.SessionID, Capacity: updated.Capacity, ActivePeers: updated.ActivePeers})
	}
}

func (h *HandlerSet) metricsStats() (broadcasts, clients int) {
	if h.stats != nil {
		return h.stats()
	}
	if h.readiness != nil {
		clients, _ = h.readiness.SnapshotClientCounts()
	}
	return
}

func (h *HandlerSet) pendingAndUptime() (pending int, uptime float64) {
	if h.readiness == nil {
		return 0, 0
	}
	_, pending = h.readiness.SnapshotClientCounts()
	return pending, h.readiness.Uptime().Seconds()
}

func (h *HandlerSet) authorise(r *http.Request) bool {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	var token string
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		token = strings.TrimSpace(header[7:])
	} else if header != "" {
		token = header
	}
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Admin-Token"))
	}
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) == 1 {
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
