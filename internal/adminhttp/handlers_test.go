package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bloopgames/rollback/internal/corestate"
	"github.com/bloopgames/rollback/internal/rollback"
)

type fakeReadiness struct {
	clients, pending int
	err              error
	uptime           time.Duration
}

func (f fakeReadiness) SnapshotClientCounts() (int, int) { return f.clients, f.pending }
func (f fakeReadiness) StartupError() error              { return f.err }
func (f fakeReadiness) Uptime() time.Duration             { return f.uptime }

func TestLivenessHandlerReportsAlive(t *testing.T) {
	hs := NewHandlerSet(Options{})
	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	hs.LivenessHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReadinessHandlerReflectsStartupError(t *testing.T) {
	hs := NewHandlerSet(Options{Readiness: fakeReadiness{err: context.DeadlineExceeded}})
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	hs.ReadinessHandler()(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestArchiveDumpHandlerRequiresAuth(t *testing.T) {
	hs := NewHandlerSet(Options{AdminToken: "secret", Archive: ArchiveDumperFunc(func(ctx context.Context) (string, error) {
		return "/tmp/archive", nil
	})})
	req := httptest.NewRequest(http.MethodPost, "/archive/dump", nil)
	rec := httptest.NewRecorder()
	hs.ArchiveDumpHandler()(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/archive/dump", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	hs.ArchiveDumpHandler()(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
}

func TestArchiveDumpHandlerDisabledWithoutToken(t *testing.T) {
	hs := NewHandlerSet(Options{})
	req := httptest.NewRequest(http.MethodPost, "/archive/dump", nil)
	rec := httptest.NewRecorder()
	hs.ArchiveDumpHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

type fakeSession struct {
	snapshot rollback.Snapshot
}

func (f *fakeSession) Snapshot() rollback.Snapshot { return f.snapshot }
func (f *fakeSession) AdjustCapacity(minPeers, maxPeers int) (rollback.Snapshot, error) {
	f.snapshot.Capacity = rollback.Capacity{MinPeers: minPeers, MaxPeers: maxPeers}
	return f.snapshot, nil
}

type fakeRollback struct {
	frame, confirmedFrame uint32
	stats                 corestate.RollbackStats
}

func (f fakeRollback) RollbackStats() corestate.RollbackStats { return f.stats }
func (f fakeRollback) Frame() uint32                          { return f.frame }
func (f fakeRollback) ConfirmedFrame() uint32                 { return f.confirmedFrame }

func TestStatusHandlerReportsRollbackCounters(t *testing.T) {
	hs := NewHandlerSet(Options{Rollback: fakeRollback{
		frame:          42,
		confirmedFrame: 40,
		stats: corestate.RollbackStats{
			LastRollbackDepth: 3,
			TotalRollbacks:    1,
			FramesResimulated: 8,
			PacketsDropped:    2,
			Drops:             corestate.DropCounters{RingOverflow: 2},
		},
	}})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	hs.StatusHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Frame             uint32 `json:"frame"`
		ConfirmedFrame    uint32 `json:"confirmed_frame"`
		TotalRollbacks    uint32 `json:"total_rollbacks"`
		FramesResimulated uint64 `json:"frames_resimulated"`
		PacketsDropped    uint32 `json:"packets_dropped"`
		Drops             struct {
			RingOverflow uint32 `json:"ring_overflow"`
		} `json:"drops"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Frame != 42 || body.ConfirmedFrame != 40 {
		t.Fatalf("frame/confirmed_frame = %d/%d, want 42/40", body.Frame, body.ConfirmedFrame)
	}
	if body.TotalRollbacks != 1 || body.FramesResimulated != 8 || body.PacketsDropped != 2 || body.Drops.RingOverflow != 2 {
		t.Fatalf("unexpected stats payload: %+v", body)
	}
}

func TestStatusHandlerUnavailableWithoutRollbackProvider(t *testing.T) {
	hs := NewHandlerSet(Options{})
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	hs.StatusHandler()(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestSessionCapacityHandlerAppliesOverrides(t *testing.T) {
	session := &fakeSession{snapshot: rollback.Snapshot{SessionID: "s1", Capacity: rollback.Capacity{MinPeers: 2, MaxPeers: 4}}}
	hs := NewHandlerSet(Options{AdminToken: "secret", Session: session})

	body := `{"max_peers": 8}`
	req := httptest.NewRequest(http.MethodPost, "/admin/session/capacity", strings.NewReader(body))
	req.Header.Set("X-Admin-Token", "secret")
	rec := httptest.NewRecorder()
	hs.SessionCapacityHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if session.snapshot.Capacity.MaxPeers != 8 || session.snapshot.Capacity.MinPeers != 2 {
		t.Fatalf("capacity = %+v, want min 2 max 8", session.snapshot.Capacity)
	}
}
