package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultAddr is the default TCP address the engine listens on.
	DefaultAddr = ":43127"
	// DefaultPingInterval is the default for Config.PingInterval. The hostbridge
	// peers do not read it; they ping on a fixed interval of their own.
	DefaultPingInterval = 30 * time.Second
	// DefaultMaxPayloadBytes limits inbound WebSocket frame size.
	DefaultMaxPayloadBytes int64 = 1 << 20
	// DefaultMaxClients is the default for Config.MaxClients, where zero means
	// no limit. The WebSocket server in main.go does not enforce this limit.
	DefaultMaxClients = 256

	// DefaultArchiveDumpWindow bounds how frequently archive dump triggers may be requested.
	DefaultArchiveDumpWindow = time.Minute
	// DefaultArchiveDumpBurst sets how many archive dump requests may be made per window.
	DefaultArchiveDumpBurst = 1

	// DefaultLogLevel controls verbosity for engine logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "rollback.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true

	// DefaultFrameHz is the fixed simulation step rate, matching a 16ms frame budget.
	DefaultFrameHz = 62.5
	// DefaultRingCapacity sizes the rollback controller's replay window: remote
	// input for a frame more than this many frames past the confirmed frame is
	// dropped. Local advance does not stall; the history keeps growing while a
	// peer lags.
	DefaultRingCapacity = 256
	// DefaultMaxPacketBytes caps a single outbound wire packet, including its header.
	DefaultMaxPacketBytes = 1200
	// DefaultBudgetBytesPerSecond is the sustained per-peer outbound packet rate.
	DefaultBudgetBytesPerSecond = 64 * 1024
	// DefaultBudgetBurstBytes is the per-peer burst allowance above the sustained rate.
	DefaultBudgetBurstBytes = 16 * 1024

	// DefaultAuthTokenLeeway bounds clock skew tolerated when validating join tokens.
	DefaultAuthTokenLeeway = 5 * time.Second
)

// Config captures all runtime tunables for the rollback engine process.
type Config struct {
	Address          string
	AllowedOrigins   []string
	MaxPayloadBytes  int64
	PingInterval     time.Duration
	MaxClients       int
	TLSCertPath      string
	TLSKeyPath       string
	AdminToken       string
	ArchiveDumpWindow time.Duration
	ArchiveDumpBurst int
	Logging          LoggingConfig

	AuthSecret      string
	AuthTokenLeeway time.Duration

	ArchiveRoot          string
	FrameHz              float64
	RingCapacity         int
	MaxPacketBytes       int
	BudgetBytesPerSecond int
	BudgetBurstBytes     int
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the engine configuration from environment variables, applying
// sane defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Address:           getString("ROLLBACK_ADDR", DefaultAddr),
		AllowedOrigins:    parseList(os.Getenv("ROLLBACK_ALLOWED_ORIGINS")),
		MaxPayloadBytes:   DefaultMaxPayloadBytes,
		PingInterval:      DefaultPingInterval,
		MaxClients:        DefaultMaxClients,
		TLSCertPath:       strings.TrimSpace(os.Getenv("ROLLBACK_TLS_CERT")),
		TLSKeyPath:        strings.TrimSpace(os.Getenv("ROLLBACK_TLS_KEY")),
		AdminToken:        strings.TrimSpace(os.Getenv("ROLLBACK_ADMIN_TOKEN")),
		ArchiveDumpWindow: DefaultArchiveDumpWindow,
		ArchiveDumpBurst:  DefaultArchiveDumpBurst,
		AuthSecret:        strings.TrimSpace(os.Getenv("ROLLBACK_AUTH_SECRET")),
		AuthTokenLeeway:   DefaultAuthTokenLeeway,
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("ROLLBACK_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("ROLLBACK_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
		ArchiveRoot:          strings.TrimSpace(getString("ROLLBACK_ARCHIVE_ROOT", "archives")),
		FrameHz:              DefaultFrameHz,
		RingCapacity:         DefaultRingCapacity,
		MaxPacketBytes:       DefaultMaxPacketBytes,
		BudgetBytesPerSecond: DefaultBudgetBytesPerSecond,
		BudgetBurstBytes:     DefaultBudgetBurstBytes,
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_MAX_PAYLOAD_BYTES")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_MAX_PAYLOAD_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPayloadBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_PING_INTERVAL")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_PING_INTERVAL must be a positive duration, got %q", raw))
		} else {
			cfg.PingInterval = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_MAX_CLIENTS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_MAX_CLIENTS must be a non-negative integer, got %q", raw))
		} else {
			cfg.MaxClients = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("ROLLBACK_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_ARCHIVE_DUMP_WINDOW")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_ARCHIVE_DUMP_WINDOW must be a positive duration, got %q", raw))
		} else {
			cfg.ArchiveDumpWindow = duration
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_ARCHIVE_DUMP_BURST")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_ARCHIVE_DUMP_BURST must be a positive integer, got %q", raw))
		} else {
			cfg.ArchiveDumpBurst = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_FRAME_HZ")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_FRAME_HZ must be a positive number, got %q", raw))
		} else {
			cfg.FrameHz = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_RING_CAPACITY")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_RING_CAPACITY must be a positive integer, got %q", raw))
		} else {
			cfg.RingCapacity = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_MAX_PACKET_BYTES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_MAX_PACKET_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.MaxPacketBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_BUDGET_BYTES_PER_SECOND")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_BUDGET_BYTES_PER_SECOND must be a positive integer, got %q", raw))
		} else {
			cfg.BudgetBytesPerSecond = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_BUDGET_BURST_BYTES")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_BUDGET_BURST_BYTES must be a positive integer, got %q", raw))
		} else {
			cfg.BudgetBurstBytes = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("ROLLBACK_AUTH_TOKEN_LEEWAY")); raw != "" {
		duration, err := time.ParseDuration(raw)
		if err != nil || duration < 0 {
			problems = append(problems, fmt.Sprintf("ROLLBACK_AUTH_TOKEN_LEEWAY must be a non-negative duration, got %q", raw))
		} else {
			cfg.AuthTokenLeeway = duration
		}
	}

	if (cfg.TLSCertPath == "") != (cfg.TLSKeyPath == "") {
		problems = append(problems, "ROLLBACK_TLS_CERT and ROLLBACK_TLS_KEY must be provided together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			values = append(values, item)
		}
	}
	return values
}
