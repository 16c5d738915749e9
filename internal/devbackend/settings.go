package devbackend

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kingrea/semester-planner/internal/config"
)

const (
	// DefaultHost is the loopback interface used when no host override is provided.
	DefaultHost = "127.0.0.1"
	// DefaultMaxUploadBytes limits uploaded documents to 25 MB.
	DefaultMaxUploadBytes int64 = 25 << 20
	// DefaultSessionTTL is how long sessions and artifacts stay retrievable.
	DefaultSessionTTL = time.Hour
	// DefaultReadTimeout guards hung clients.
	DefaultReadTimeout = 30 * time.Second
	// DefaultWriteTimeout bounds handler writes.
	DefaultWriteTimeout = 30 * time.Second
	// DefaultIdleTimeout bounds keep-alive connections.
	DefaultIdleTimeout = 60 * time.Second

	EnvHost       = "PLANNER_DEV_BACKEND_HOST"
	EnvSessionTTL = "PLANNER_DEV_SESSION_TTL"
)

// Settings captures runtime configuration for the local planner service.
// Port 0 binds an ephemeral port.
type Settings struct {
	Enabled        bool
	Host           string
	Port           int
	Fixture        string
	MaxUploadBytes int64
	SessionTTL     time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

// SettingsFromConfig builds Settings using the project's .planner config and
// environment overrides.
func SettingsFromConfig(cfg *config.Config) Settings {
	settings := Settings{
		Host:           DefaultHost,
		MaxUploadBytes: DefaultMaxUploadBytes,
		SessionTTL:     DefaultSessionTTL,
	}
	if cfg != nil {
		raw := cfg.Project.DevBackend
		settings.Enabled = raw.Enabled
		if host := strings.TrimSpace(raw.Host); host != "" {
			settings.Host = host
		}
		if isValidPort(raw.Port) {
			settings.Port = raw.Port
		}
		settings.Fixture = cfg.DevBackendFixture()
		if limit := cfg.Project.Intake.MaxBytes; limit > 0 {
			settings.MaxUploadBytes = limit
		}
	}
	settings.applyEnvOverrides()
	settings.normalize()
	return settings
}

func (s *Settings) applyEnvOverrides() {
	if s == nil {
		return
	}
	if host := strings.TrimSpace(os.Getenv(EnvHost)); host != "" {
		s.Host = host
	}
	if ttl := strings.TrimSpace(os.Getenv(EnvSessionTTL)); ttl != "" {
		if parsed, err := time.ParseDuration(ttl); err == nil && parsed > 0 {
			s.SessionTTL = parsed
		}
	}
}

func (s *Settings) normalize() {
	if s == nil {
		return
	}
	s.Host = strings.TrimSpace(s.Host)
	if s.Host == "" {
		s.Host = DefaultHost
	}
	if !isValidPort(s.Port) {
		s.Port = 0
	}
	if s.MaxUploadBytes <= 0 {
		s.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = DefaultSessionTTL
	}
	if s.ReadTimeout <= 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	if s.WriteTimeout <= 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
}

// Address returns the TCP bind address in host:port form.
func (s Settings) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// URL returns the HTTP base URL for the server.
func (s Settings) URL() string {
	return "http://" + s.Address()
}

func isValidPort(port int) bool {
	return port >= 0 && port <= 65535
}
