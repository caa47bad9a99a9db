// Command rollback runs the deterministic rollback simulation engine as a
// standalone WebSocket server: peers connect, exchange input packets, and
// the fixed-timestep scheduler drives the engine forward in real time.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bloopgames/rollback/internal/adminhttp"
	"github.com/bloopgames/rollback/internal/archive"
	"github.com/bloopgames/rollback/internal/auth"
	"github.com/bloopgames/rollback/internal/config"
	"github.com/bloopgames/rollback/internal/hostbridge"
	"github.com/bloopgames/rollback/internal/logging"
	"github.com/bloopgames/rollback/internal/packet"
	"github.com/bloopgames/rollback/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("construct logger: %w", err)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	tlsEnabled := cfg.TLSCertPath != "" && cfg.TLSKeyPath != ""
	if tlsEnabled {
		if _, err := tls.LoadX509KeyPair(cfg.TLSCertPath, cfg.TLSKeyPath); err != nil {
			return fmt.Errorf("load TLS certificate: %w", err)
		}
	}

	var verifier *auth.HMACTokenVerifier
	if cfg.AuthSecret != "" {
		verifier, err = auth.NewHMACTokenVerifier(cfg.AuthSecret, cfg.AuthTokenLeeway)
		if err != nil {
			return fmt.Errorf("construct auth verifier: %w", err)
		}
	}

	var archiveWriter *archive.Writer
	var archiveCleaner *archive.Cleaner
	if cfg.ArchiveRoot != "" {
		var manifest archive.Manifest
		archiveWriter, manifest, err = archive.NewWriter(cfg.ArchiveRoot, "rollback", time.Now)
		if err != nil {
			return fmt.Errorf("construct archive writer: %w", err)
		}
		logger.Info("archive writer started",
			logging.String("directory", archiveWriter.Directory()),
			logging.Int("dump_interval_ms", manifest.DumpIntervalMs),
		)
		archiveCleaner = archive.NewCleaner(cfg.ArchiveRoot, archive.RetentionPolicy{MaxSessions: 50, MaxAge: 7 * 24 * time.Hour}, logger)
	}

	seed := uint32(time.Now().UnixNano())
	engine, err := NewEngine(0, seed,
		WithFrameHz(cfg.FrameHz),
		WithHistoryCapacity(cfg.RingCapacity),
		WithEngineLogger(logger),
		WithArchiveWriter(archiveWriter),
	)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	budget := packet.NewBudget(cfg.BudgetBytesPerSecond, cfg.BudgetBurstBytes, nil)
	tickMonitor := scheduler.NewTickMonitor()

	server := &bridgeServer{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		budget:  budget,
		verifier: verifier,
	}
	server.hub = hostbridge.NewHub(cfg.MaxPayloadBytes, server.handlePacket)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.handleWebSocket)

	handlerSet := adminhttp.NewHandlerSet(adminhttp.Options{
		Logger:      logger,
		Readiness:   engine,
		Budget:      budget,
		TickMonitor: tickMonitor,
		Archive:     adminhttp.ArchiveDumperFunc(engine.DumpArchive),
		AdminToken:  cfg.AdminToken,
		Session:     engine,
		Rollback:    engine,
		ArchiveWriter: func() archive.Stats {
			if archiveWriter == nil {
				return archive.Stats{}
			}
			return archiveWriter.Stats()
		},
		Storage: func() archive.StorageStats {
			if archiveCleaner == nil {
				return archive.StorageStats{}
			}
			return archiveCleaner.Stats()
		},
	})
	handlerSet.Register(mux)

	httpServer := &http.Server{Addr: cfg.Address, Handler: mux}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if archiveCleaner != nil {
		go archiveCleaner.Run(ctx, time.Hour)
	}

	loop := scheduler.New(cfg.FrameHz, func(d time.Duration) error {
		return engine.Step(uint32(d.Milliseconds()))
	}, scheduler.WithMonitor(tickMonitor), scheduler.WithLogger(logger))
	loop.Start(ctx)

	errc := make(chan error, 1)
	go func() {
		logger.Info("rollback engine listening", logging.String("url", listenerURL(cfg.Address, tlsEnabled)))
		var err error
		if tlsEnabled {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	loop.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown error", logging.Error(err))
	}
	if archiveWriter != nil {
		if err := archiveWriter.Close(); err != nil {
			logger.Warn("archive writer close error", logging.Error(err))
		}
	}
	return nil
}

// bridgeServer wires the WebSocket transport to the Engine facade: it
// assigns peer slots, enforces origin and token checks, and relays raw
// frames between hostbridge.Hub and Engine.ReceivePacket/BuildOutboundPacket.
type bridgeServer struct {
	cfg      *config.Config
	logger   *logging.Logger
	engine   *Engine
	hub      *hostbridge.Hub
	budget   *packet.Budget
	verifier *auth.HMACTokenVerifier

	nextPeer uint32
}

func (s *bridgeServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if s.verifier != nil {
		token := r.URL.Query().Get("token")
		if _, err := s.verifier.Verify(token); err != nil {
			s.logger.Warn("websocket join rejected", logging.Error(err))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	peerID := uint8(atomic.AddUint32(&s.nextPeer, 1))
	if err := s.engine.RegisterPeer(peerID); err != nil {
		s.logger.Error("failed to register peer", logging.Error(err))
		http.Error(w, "capacity reached", http.StatusServiceUnavailable)
		return
	}
	if _, err := s.engine.SessionInit(fmt.Sprintf("peer-%d", peerID)); err != nil {
		s.logger.Warn("session join failed", logging.Error(err))
	}

	if err := s.hub.Accept(peerID, w, r); err != nil {
		s.logger.Warn("websocket accept failed", logging.Error(err), logging.Int("peer_id", int(peerID)))
	}

	_ = s.engine.ForgetPeer(peerID)
	s.engine.SessionEnd(fmt.Sprintf("peer-%d", peerID))
	s.budget.Forget(peerID)
}

func (s *bridgeServer) handlePacket(peerID uint8, data []byte) {
	if !s.budget.Allow(peerID, len(data)) {
		s.logger.Debug("dropping inbound packet over budget", logging.Int("peer_id", int(peerID)))
		return
	}
	if err := s.engine.ReceivePacket(data); err != nil {
		s.logger.Warn("failed to ingest inbound packet", logging.Error(err), logging.Int("peer_id", int(peerID)))
		return
	}

	outbound, err := s.engine.BuildOutboundPacket(peerID, s.cfg.MaxPacketBytes)
	if err != nil {
		s.logger.Warn("failed to build outbound packet", logging.Error(err), logging.Int("peer_id", int(peerID)))
		return
	}
	if len(outbound) == 0 {
		return
	}
	if err := s.hub.Send(peerID, outbound); err != nil && !errors.Is(err, hostbridge.ErrPeerClosed) {
		s.logger.Debug("failed to send outbound packet", logging.Error(err), logging.Int("peer_id", int(peerID)))
	}
}

func (s *bridgeServer) originAllowed(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
