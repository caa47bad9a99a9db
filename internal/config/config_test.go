package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearRollbackEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ROLLBACK_ADDR",
		"ROLLBACK_ALLOWED_ORIGINS",
		"ROLLBACK_MAX_PAYLOAD_BYTES",
		"ROLLBACK_PING_INTERVAL",
		"ROLLBACK_MAX_CLIENTS",
		"ROLLBACK_TLS_CERT",
		"ROLLBACK_TLS_KEY",
		"ROLLBACK_ADMIN_TOKEN",
		"ROLLBACK_LOG_LEVEL",
		"ROLLBACK_LOG_PATH",
		"ROLLBACK_LOG_MAX_SIZE_MB",
		"ROLLBACK_LOG_MAX_BACKUPS",
		"ROLLBACK_LOG_MAX_AGE_DAYS",
		"ROLLBACK_LOG_COMPRESS",
		"ROLLBACK_ARCHIVE_DUMP_WINDOW",
		"ROLLBACK_ARCHIVE_DUMP_BURST",
		"ROLLBACK_ARCHIVE_ROOT",
		"ROLLBACK_AUTH_SECRET",
		"ROLLBACK_AUTH_TOKEN_LEEWAY",
		"ROLLBACK_FRAME_HZ",
		"ROLLBACK_RING_CAPACITY",
		"ROLLBACK_MAX_PACKET_BYTES",
		"ROLLBACK_BUDGET_BYTES_PER_SECOND",
		"ROLLBACK_BUDGET_BURST_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearRollbackEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != DefaultAddr {
		t.Fatalf("expected default addr %q, got %q", DefaultAddr, cfg.Address)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("expected no allowed origins, got %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Fatalf("expected default max payload %d, got %d", DefaultMaxPayloadBytes, cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval != DefaultPingInterval {
		t.Fatalf("expected default ping interval %v, got %v", DefaultPingInterval, cfg.PingInterval)
	}
	if cfg.MaxClients != DefaultMaxClients {
		t.Fatalf("expected default max clients %d, got %d", DefaultMaxClients, cfg.MaxClients)
	}
	if cfg.TLSCertPath != "" || cfg.TLSKeyPath != "" {
		t.Fatalf("expected TLS paths to be empty, got cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.AdminToken != "" {
		t.Fatalf("expected admin token to be empty by default")
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected auth secret to be empty by default")
	}
	if cfg.AuthTokenLeeway != DefaultAuthTokenLeeway {
		t.Fatalf("expected default auth token leeway %v, got %v", DefaultAuthTokenLeeway, cfg.AuthTokenLeeway)
	}
	if cfg.ArchiveDumpWindow != DefaultArchiveDumpWindow {
		t.Fatalf("expected default archive dump window %v, got %v", DefaultArchiveDumpWindow, cfg.ArchiveDumpWindow)
	}
	if cfg.ArchiveDumpBurst != DefaultArchiveDumpBurst {
		t.Fatalf("expected default archive dump burst %d, got %d", DefaultArchiveDumpBurst, cfg.ArchiveDumpBurst)
	}
	if cfg.ArchiveRoot != "archives" {
		t.Fatalf("expected default archive root %q, got %q", "archives", cfg.ArchiveRoot)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Logging.Path != DefaultLogPath {
		t.Fatalf("expected default log path %q, got %q", DefaultLogPath, cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != DefaultLogMaxSizeMB {
		t.Fatalf("expected default log max size %d, got %d", DefaultLogMaxSizeMB, cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != DefaultLogMaxBackups {
		t.Fatalf("expected default log max backups %d, got %d", DefaultLogMaxBackups, cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != DefaultLogMaxAgeDays {
		t.Fatalf("expected default log max age %d, got %d", DefaultLogMaxAgeDays, cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress != DefaultLogCompress {
		t.Fatalf("expected default log compress %t, got %t", DefaultLogCompress, cfg.Logging.Compress)
	}
	if cfg.FrameHz != DefaultFrameHz {
		t.Fatalf("expected default frame Hz %v, got %v", DefaultFrameHz, cfg.FrameHz)
	}
	if cfg.RingCapacity != DefaultRingCapacity {
		t.Fatalf("expected default ring capacity %d, got %d", DefaultRingCapacity, cfg.RingCapacity)
	}
	if cfg.MaxPacketBytes != DefaultMaxPacketBytes {
		t.Fatalf("expected default max packet bytes %d, got %d", DefaultMaxPacketBytes, cfg.MaxPacketBytes)
	}
	if cfg.BudgetBytesPerSecond != DefaultBudgetBytesPerSecond {
		t.Fatalf("expected default budget bytes/sec %d, got %d", DefaultBudgetBytesPerSecond, cfg.BudgetBytesPerSecond)
	}
	if cfg.BudgetBurstBytes != DefaultBudgetBurstBytes {
		t.Fatalf("expected default budget burst bytes %d, got %d", DefaultBudgetBurstBytes, cfg.BudgetBurstBytes)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearRollbackEnv(t)

	t.Setenv("ROLLBACK_ADDR", "127.0.0.1:9000")
	t.Setenv("ROLLBACK_ALLOWED_ORIGINS", "https://example.com, https://demo.local")
	t.Setenv("ROLLBACK_MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("ROLLBACK_PING_INTERVAL", "45s")
	t.Setenv("ROLLBACK_MAX_CLIENTS", "12")
	t.Setenv("ROLLBACK_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("ROLLBACK_TLS_KEY", "/tmp/key.pem")
	t.Setenv("ROLLBACK_LOG_LEVEL", "debug")
	t.Setenv("ROLLBACK_LOG_PATH", "/var/log/rollback.log")
	t.Setenv("ROLLBACK_LOG_MAX_SIZE_MB", "512")
	t.Setenv("ROLLBACK_LOG_MAX_BACKUPS", "4")
	t.Setenv("ROLLBACK_LOG_MAX_AGE_DAYS", "2")
	t.Setenv("ROLLBACK_LOG_COMPRESS", "false")
	t.Setenv("ROLLBACK_ADMIN_TOKEN", "s3cret")
	t.Setenv("ROLLBACK_ARCHIVE_DUMP_WINDOW", "2m")
	t.Setenv("ROLLBACK_ARCHIVE_DUMP_BURST", "3")
	t.Setenv("ROLLBACK_ARCHIVE_ROOT", "/var/run/rollback/archives")
	t.Setenv("ROLLBACK_AUTH_SECRET", "auth-secret")
	t.Setenv("ROLLBACK_AUTH_TOKEN_LEEWAY", "2s")
	t.Setenv("ROLLBACK_FRAME_HZ", "120")
	t.Setenv("ROLLBACK_RING_CAPACITY", "512")
	t.Setenv("ROLLBACK_MAX_PACKET_BYTES", "900")
	t.Setenv("ROLLBACK_BUDGET_BYTES_PER_SECOND", "32768")
	t.Setenv("ROLLBACK_BUDGET_BURST_BYTES", "8192")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Address != "127.0.0.1:9000" {
		t.Fatalf("unexpected address: %q", cfg.Address)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://example.com" || cfg.AllowedOrigins[1] != "https://demo.local" {
		t.Fatalf("unexpected allowed origins: %#v", cfg.AllowedOrigins)
	}
	if cfg.MaxPayloadBytes != 2048 {
		t.Fatalf("expected overridden max payload, got %d", cfg.MaxPayloadBytes)
	}
	if cfg.PingInterval.String() != "45s" {
		t.Fatalf("expected ping interval 45s, got %v", cfg.PingInterval)
	}
	if cfg.MaxClients != 12 {
		t.Fatalf("expected max clients 12, got %d", cfg.MaxClients)
	}
	if cfg.TLSCertPath != "/tmp/cert.pem" || cfg.TLSKeyPath != "/tmp/key.pem" {
		t.Fatalf("unexpected TLS paths cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected overridden log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Path != "/var/log/rollback.log" {
		t.Fatalf("unexpected log path %q", cfg.Logging.Path)
	}
	if cfg.Logging.MaxSizeMB != 512 {
		t.Fatalf("expected log max size 512, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups != 4 {
		t.Fatalf("expected log max backups 4, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Logging.MaxAgeDays != 2 {
		t.Fatalf("expected log max age 2, got %d", cfg.Logging.MaxAgeDays)
	}
	if cfg.Logging.Compress {
		t.Fatalf("expected log compression disabled")
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("expected overridden admin token, got %q", cfg.AdminToken)
	}
	if cfg.ArchiveDumpWindow != 2*time.Minute {
		t.Fatalf("expected archive dump window 2m, got %v", cfg.ArchiveDumpWindow)
	}
	if cfg.ArchiveDumpBurst != 3 {
		t.Fatalf("expected archive dump burst 3, got %d", cfg.ArchiveDumpBurst)
	}
	if cfg.ArchiveRoot != "/var/run/rollback/archives" {
		t.Fatalf("expected archive root override, got %q", cfg.ArchiveRoot)
	}
	if cfg.AuthSecret != "auth-secret" {
		t.Fatalf("expected auth secret override, got %q", cfg.AuthSecret)
	}
	if cfg.AuthTokenLeeway != 2*time.Second {
		t.Fatalf("expected auth token leeway 2s, got %v", cfg.AuthTokenLeeway)
	}
	if cfg.FrameHz != 120 {
		t.Fatalf("expected frame Hz 120, got %v", cfg.FrameHz)
	}
	if cfg.RingCapacity != 512 {
		t.Fatalf("expected ring capacity 512, got %d", cfg.RingCapacity)
	}
	if cfg.MaxPacketBytes != 900 {
		t.Fatalf("expected max packet bytes 900, got %d", cfg.MaxPacketBytes)
	}
	if cfg.BudgetBytesPerSecond != 32768 {
		t.Fatalf("expected budget bytes/sec 32768, got %d", cfg.BudgetBytesPerSecond)
	}
	if cfg.BudgetBurstBytes != 8192 {
		t.Fatalf("expected budget burst bytes 8192, got %d", cfg.BudgetBurstBytes)
	}
}

func TestLoadReturnsValidationErrors(t *testing.T) {
	clearRollbackEnv(t)

	t.Setenv("ROLLBACK_MAX_PAYLOAD_BYTES", "-5")
	t.Setenv("ROLLBACK_PING_INTERVAL", "abc")
	t.Setenv("ROLLBACK_MAX_CLIENTS", "-1")
	t.Setenv("ROLLBACK_TLS_CERT", "/tmp/cert.pem")
	t.Setenv("ROLLBACK_TLS_KEY", "")
	t.Setenv("ROLLBACK_LOG_MAX_SIZE_MB", "-1")
	t.Setenv("ROLLBACK_LOG_MAX_BACKUPS", "-2")
	t.Setenv("ROLLBACK_LOG_MAX_AGE_DAYS", "-3")
	t.Setenv("ROLLBACK_LOG_COMPRESS", "notabool")
	t.Setenv("ROLLBACK_ARCHIVE_DUMP_WINDOW", "-")
	t.Setenv("ROLLBACK_ARCHIVE_DUMP_BURST", "0")
	t.Setenv("ROLLBACK_FRAME_HZ", "-1")
	t.Setenv("ROLLBACK_RING_CAPACITY", "0")
	t.Setenv("ROLLBACK_MAX_PACKET_BYTES", "0")
	t.Setenv("ROLLBACK_BUDGET_BYTES_PER_SECOND", "0")
	t.Setenv("ROLLBACK_BUDGET_BURST_BYTES", "0")
	t.Setenv("ROLLBACK_AUTH_TOKEN_LEEWAY", "-1s")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error from invalid configuration, got nil")
	}

	for _, want := range []string{
		"ROLLBACK_MAX_PAYLOAD_BYTES",
		"ROLLBACK_PING_INTERVAL",
		"ROLLBACK_MAX_CLIENTS",
		"ROLLBACK_TLS_CERT",
		"ROLLBACK_LOG_MAX_SIZE_MB",
		"ROLLBACK_LOG_MAX_BACKUPS",
		"ROLLBACK_LOG_MAX_AGE_DAYS",
		"ROLLBACK_LOG_COMPRESS",
		"ROLLBACK_ARCHIVE_DUMP_WINDOW",
		"ROLLBACK_ARCHIVE_DUMP_BURST",
		"ROLLBACK_FRAME_HZ",
		"ROLLBACK_RING_CAPACITY",
		"ROLLBACK_MAX_PACKET_BYTES",
		"ROLLBACK_BUDGET_BYTES_PER_SECOND",
		"ROLLBACK_BUDGET_BURST_BYTES",
		"ROLLBACK_AUTH_TOKEN_LEEWAY",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to mention %s, got %q", want, err.Error())
		}
	}
}

func TestLoadIgnoresEmptyAllowedOrigins(t *testing.T) {
	clearRollbackEnv(t)
	t.Setenv("ROLLBACK_ALLOWED_ORIGINS", " , ,https://ok.example, ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "https://ok.example" {
		t.Fatalf("expected single cleaned origin, got %#v", cfg.AllowedOrigins)
	}
}

func TestLoadAllowsUnlimitedClients(t *testing.T) {
	clearRollbackEnv(t)
	t.Setenv("ROLLBACK_MAX_CLIENTS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.MaxClients != 0 {
		t.Fatalf("expected zero to disable limit, got %d", cfg.MaxClients)
	}
}

func TestLoadRequiresTLSPairTogether(t *testing.T) {
	clearRollbackEnv(t)
	certFile := createTempFile(t)

	t.Setenv("ROLLBACK_TLS_CERT", certFile)
	t.Setenv("ROLLBACK_TLS_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when only one TLS path is set")
	}
}

func TestLoadWithCustomTLSPair(t *testing.T) {
	clearRollbackEnv(t)
	certFile := createTempFile(t)
	keyFile := createTempFile(t)

	t.Setenv("ROLLBACK_TLS_CERT", certFile)
	t.Setenv("ROLLBACK_TLS_KEY", keyFile)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.TLSCertPath != certFile || cfg.TLSKeyPath != keyFile {
		t.Fatalf("unexpected TLS pair cert=%q key=%q", cfg.TLSCertPath, cfg.TLSKeyPath)
	}
}

func createTempFile(t *testing.T) string {
	t.Helper()
	f, err := os.CreateTemp("", "rollback-config-test-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	name := f.Name()
	f.Close()
	t.Cleanup(func() { _ = os.Remove(name) })
	return name
}
