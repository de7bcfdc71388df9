package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. PINSHARE_SERVER_PORT or PINSHARE_SESSION_TTL.
const EnvPrefix = "PINSHARE"

// DefaultFile is the file name searched for when no explicit path is given.
const DefaultFile = "config.yaml"

var ErrInvalidConfig = errors.New("invalid configuration")

// Settings holds the whole server configuration.
type Settings struct {
	Server    Server    `fig:"server"`
	Session   Session   `fig:"session"`
	Transport Transport `fig:"transport"`
	Admin     Admin     `fig:"admin"`
	Metrics   Metrics   `fig:"metrics"`
	Log       Log       `fig:"log"`
	Ngrok     Ngrok     `fig:"ngrok"`
}

type Server struct {
	Host            string        `fig:"host" default:"localhost"`
	Port            int           `fig:"port" default:"3000"`
	StaticDir       string        `fig:"static_dir" default:"public"`
	ReadTimeout     time.Duration `fig:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `fig:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `fig:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `fig:"shutdown_timeout" default:"10s"`
}

// Session controls pairing lifetime.
type Session struct {
	TTL           time.Duration `fig:"ttl" default:"10m"`
	SweepInterval time.Duration `fig:"sweep_interval" default:"30s"`
	DefaultName   string        `fig:"default_name" default:"Sharer"`
}

// Transport tunes the websocket connections.
type Transport struct {
	SendBuffer     int      `fig:"send_buffer" default:"32"`
	MaxMessageSize int64    `fig:"max_message_size" default:"4096"`
	AllowedOrigins []string `fig:"allowed_origins"`
}

// Admin enables the session inspection API and MCP tools.
type Admin struct {
	Enabled bool `fig:"enabled"`
}

// Metrics are served on /metrics unless disabled. fig cannot default a bool
// to true, so the switch is negative.
type Metrics struct {
	Disabled bool `fig:"disabled"`
}

type Log struct {
	Debug   bool `fig:"debug"`
	Console bool `fig:"console"`
	NoColor bool `fig:"no_color"`
}

type Ngrok struct {
	Enabled   bool   `fig:"enabled"`
	AuthToken string `fig:"auth_token"`
	Domain    string `fig:"domain"`
}

// Load reads settings from path, or from config.yaml in the working
// directory or ./configs when path is empty. A missing default file is not an
// error: defaults and PINSHARE_* variables still apply. Load does not call
// Validate, so callers can apply overrides first.
func Load(path string) (*Settings, error) {
	s := &Settings{}

	if path != "" {
		err := fig.Load(s,
			fig.File(filepath.Base(path)),
			fig.Dirs(filepath.Dir(path)),
			fig.UseEnv(EnvPrefix),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, err)
		}
		return s, nil
	}

	err := fig.Load(s, fig.File(DefaultFile), fig.Dirs(".", "configs"), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		s = &Settings{}
		err = fig.Load(s, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return s, nil
}

// Validate reports every problem found, joined into one error.
func (s *Settings) Validate() error {
	var errs []error

	if s.Server.Port <= 0 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", s.Server.Port))
	}
	if s.Session.TTL <= 0 {
		errs = append(errs, fmt.Errorf("session.ttl must be positive, got %v", s.Session.TTL))
	}
	if s.Session.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session.sweep_interval must be positive, got %v", s.Session.SweepInterval))
	}
	if s.Transport.SendBuffer <= 0 {
		errs = append(errs, fmt.Errorf("transport.send_buffer must be positive, got %d", s.Transport.SendBuffer))
	}
	if s.Transport.MaxMessageSize <= 0 {
		errs = append(errs, fmt.Errorf("transport.max_message_size must be positive, got %d", s.Transport.MaxMessageSize))
	}
	if s.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive, got %v", s.Server.ShutdownTimeout))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Addr returns the host:port the HTTP server binds to.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Server.Host, s.Server.Port)
}
