package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Exporter protocols.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http/protobuf"
)

// Config configures OTLP export. It is the "telemetry" section of the
// application config.
type Config struct {
	Enabled        bool    `koanf:"enabled"`
	Endpoint       string  `koanf:"endpoint"`
	Protocol       string  `koanf:"protocol"`
	ServiceName    string  `koanf:"service_name"`
	ServiceVersion string  `koanf:"service_version"`
	Insecure       bool    `koanf:"insecure"`
	TLSSkipVerify  bool    `koanf:"tls_skip_verify"`
	SampleRate     float64 `koanf:"sample_rate"`

	Metrics  MetricsConfig `koanf:"metrics"`
	Shutdown time.Duration `koanf:"shutdown_timeout"`
}

// MetricsConfig controls periodic metric export.
type MetricsConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// NewDefaultConfig returns a disabled config pointing at a local collector.
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		Protocol:       ProtocolGRPC,
		ServiceName:    "deepagent",
		ServiceVersion: "dev",
		Insecure:       true,
		SampleRate:     1.0,
		Metrics:        MetricsConfig{Enabled: true, Interval: 15 * time.Second},
		Shutdown:       5 * time.Second,
	}
}

// Validate checks the config. A disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint is required")
	case c.ServiceName == "":
		return errors.New("service_name is required")
	case c.Protocol != "" && c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP:
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolGRPC, ProtocolHTTP, c.Protocol)
	case c.SampleRate < 0 || c.SampleRate > 1:
		return fmt.Errorf("sample_rate must be within [0, 1], got %v", c.SampleRate)
	case c.Metrics.Enabled && c.Metrics.Interval <= 0:
		return errors.New("metrics.interval must be positive")
	case c.Shutdown <= 0:
		return errors.New("shutdown_timeout must be positive")
	case c.Insecure && !isLoopback(c.Endpoint):
		return fmt.Errorf("insecure export is only allowed to a loopback endpoint, got %q", c.Endpoint)
	}
	return nil
}

func isLoopback(endpoint string) bool {
	host := stripScheme(endpoint)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimPrefix(endpoint, "http://")
}
