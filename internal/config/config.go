// Package config loads the portico-serve configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/portico-http/portico/pkg/bindable"
	"github.com/portico-http/portico/pkg/listener"
	"github.com/portico-http/portico/pkg/tlslistener"
)

// Unix socket modes.
const (
	UnixModeNative = "native"
	UnixModePolled = "polled"
)

// Config is the top-level configuration.
type Config struct {
	Listen    ListenConfig     `yaml:"listen"`
	Accept    AcceptConfig     `yaml:"accept"`
	TLS       *TLSConfig       `yaml:"tls"`
	Log       LogConfig        `yaml:"log"`
	Advertise *AdvertiseConfig `yaml:"advertise"`
}

// ListenConfig selects the transport.
type ListenConfig struct {
	// Address is "host:port" or "unix:/path/to/socket".
	Address string `yaml:"address"`

	// UnixMode is "native" or "polled". Only used for unix addresses.
	UnixMode string `yaml:"unix_mode"`

	// PollInterval for the polled unix mode.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AcceptConfig configures the accept loop.
type AcceptConfig struct {
	// Backoff after listener-wide accept errors. Unset means the default
	// of 250ms; 0 makes such errors fatal.
	Backoff *time.Duration `yaml:"backoff"`

	// NoDelay requests TCP_NODELAY on accepted connections.
	NoDelay bool `yaml:"nodelay"`
}

// TLSConfig enables TLS. Paths point to PEM files.
type TLSConfig struct {
	CertChain         string   `yaml:"cert_chain"`
	PrivateKey        string   `yaml:"private_key"`
	CACerts           string   `yaml:"ca_certs"`
	MandatoryMTLS     bool     `yaml:"mandatory_mtls"`
	CipherSuites      []string `yaml:"ciphers"`
	PreferServerOrder bool     `yaml:"prefer_server_order"`
	HTTP2             *bool    `yaml:"http2"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// ProtocolLog is an optional path for the CBOR connection event log.
	ProtocolLog string `yaml:"protocol_log"`
}

// AdvertiseConfig enables mDNS announcement of TCP listeners.
type AdvertiseConfig struct {
	Instance  string            `yaml:"instance"`
	Interface string            `yaml:"interface"`
	TTL       time.Duration     `yaml:"ttl"`
	TXT       map[string]string `yaml:"txt"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{
			Address:      "127.0.0.1:8080",
			UnixMode:     UnixModeNative,
			PollInterval: listener.DefaultPollInterval,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	isUnix := strings.HasPrefix(strings.TrimSpace(c.Listen.Address), "unix:")
	if isUnix {
		if _, err := bindable.Parse(c.Listen.Address); err != nil {
			return fmt.Errorf("listen.address: %w", err)
		}
		switch c.Listen.UnixMode {
		case UnixModeNative, UnixModePolled:
		default:
			return fmt.Errorf("listen.unix_mode: must be %q or %q, got %q",
				UnixModeNative, UnixModePolled, c.Listen.UnixMode)
		}
	} else if _, _, err := net.SplitHostPort(c.Listen.Address); err != nil {
		return fmt.Errorf("listen.address: %w", err)
	}
	if c.Listen.PollInterval < 0 {
		return fmt.Errorf("listen.poll_interval: must not be negative")
	}

	if c.Accept.Backoff != nil && *c.Accept.Backoff < 0 {
		return fmt.Errorf("accept.backoff: must not be negative")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	if c.TLS != nil {
		if err := c.TLS.validate(); err != nil {
			return fmt.Errorf("tls.%w", err)
		}
	}

	if c.Advertise != nil && isUnix {
		return fmt.Errorf("advertise: only TCP listeners can be advertised")
	}
	return nil
}

// UnixPath returns the socket path of a "unix:" listen address.
func (c *Config) UnixPath() (string, bool) {
	addr, err := bindable.Parse(c.Listen.Address)
	if err != nil || !addr.IsUnix() {
		return "", false
	}
	return addr.Path()
}

// SleepOnErrors returns the accept backoff.
func (a AcceptConfig) SleepOnErrors() time.Duration {
	if a.Backoff == nil {
		return listener.DefaultSleepOnErrors
	}
	return *a.Backoff
}

// SlogLevel converts the level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", l.Level)
}

func (t *TLSConfig) validate() error {
	if t.CertChain == "" {
		return fmt.Errorf("cert_chain: required")
	}
	if t.PrivateKey == "" {
		return fmt.Errorf("private_key: required")
	}
	if t.MandatoryMTLS && t.CACerts == "" {
		return fmt.Errorf("mandatory_mtls: requires ca_certs")
	}
	if _, err := t.cipherSuites(); err != nil {
		return fmt.Errorf("ciphers: %w", err)
	}
	return nil
}

// HTTP2Enabled reports whether h2 should be advertised. Default true.
func (t *TLSConfig) HTTP2Enabled() bool {
	return t.HTTP2 == nil || *t.HTTP2
}

func (t *TLSConfig) cipherSuites() ([]uint16, error) {
	ids := make([]uint16, 0, len(t.CipherSuites))
	for _, name := range t.CipherSuites {
		id, err := tlslistener.CipherSuiteByName(name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ListenerConfig reads the PEM files and builds the TLS listener input.
func (t *TLSConfig) ListenerConfig() (tlslistener.Config, error) {
	var cfg tlslistener.Config

	chain, err := os.ReadFile(t.CertChain)
	if err != nil {
		return cfg, fmt.Errorf("reading cert chain: %w", err)
	}
	key, err := os.ReadFile(t.PrivateKey)
	if err != nil {
		return cfg, fmt.Errorf("reading private key: %w", err)
	}
	suites, err := t.cipherSuites()
	if err != nil {
		return cfg, err
	}

	cfg = tlslistener.Config{
		CertChain:         bytes.NewReader(chain),
		PrivateKey:        bytes.NewReader(key),
		MandatoryMTLS:     t.MandatoryMTLS,
		CipherSuites:      suites,
		PreferServerOrder: t.PreferServerOrder,
	}
	if t.CACerts != "" {
		ca, err := os.ReadFile(t.CACerts)
		if err != nil {
			return cfg, fmt.Errorf("reading CA certs: %w", err)
		}
		cfg.CACerts = bytes.NewReader(ca)
	}
	return cfg, nil
}
